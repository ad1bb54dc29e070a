package tests

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func fptr(v float64) *float64 {
	return &v
}

func TestEvaluationRecordingAndLatest(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	teamId, err := owner.createTeam("U12")
	if err != nil {
		t.Fatal(err)
	}

	coach := env.addStaff(t, &owner, "Coach", "coach@mail.com", "coach")
	coachId := uuid.MustParse(coach.userId)
	if err := owner.assignCoach(teamId, coachId); err != nil {
		t.Fatal(err)
	}

	parent := env.addMember(t, &owner, "Parent", "parent@mail.com", "parent")
	parentId := uuid.MustParse(parent.userId)

	playerId, err := owner.createPlayer(teamId, parentId, "Alex", "Lee")
	if err != nil {
		t.Fatal(err)
	}

	// No evaluation yet: the latest view is null, not an error.
	view, err := parent.latestEvaluation(playerId)
	if err != nil {
		t.Fatal(err)
	}
	if view != nil {
		t.Fatalf("player without evaluations should return null, got %v", view)
	}

	scores := map[string]map[string]*float64{
		playerId.String(): {
			"sprint_1":  fptr(5),
			"agility_1": fptr(3),
			"agility_2": fptr(0),
			"agility_3": fptr(6),
		},
	}

	evalId, err := coach.createEvaluation(teamId, "Spring Testing", scores)
	if err != nil {
		t.Fatal(err)
	}

	evals, err := coach.listEvaluations(teamId)
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 1 || evals[0].Id != evalId || evals[0].Name != "Spring Testing" {
		t.Fatalf("evaluation listing is wrong, got %v", evals)
	}

	view, err = parent.latestEvaluation(playerId)
	if err != nil {
		t.Fatal(err)
	}
	if view == nil {
		t.Fatal("latest evaluation should exist after recording")
	}
	if view.EvaluationId != evalId {
		t.Fatalf("latest view names the wrong evaluation: %v", view.EvaluationId)
	}

	// One valid sprint attempt of 5: average and total both equal 5.
	sprint := view.AttemptGroups["sprint"]
	if sprint.Average == nil || *sprint.Average != 5 || sprint.Total == nil || *sprint.Total != 5 {
		t.Fatalf("single attempt of 5 should give average 5 and total 5, got %v", sprint)
	}

	// A recorded zero counts as an attempt, a missing one does not.
	agility := view.AttemptGroups["agility"]
	if agility.Average == nil || *agility.Average != 3 {
		t.Fatalf("agility average over {3, 0, 6} should be 3, got %v", agility.Average)
	}
	if agility.Max == nil || *agility.Max != 6 || agility.Total == nil || *agility.Total != 9 {
		t.Fatalf("agility max should be 6 and total 9, got %v", agility)
	}

	// A group with zero recorded attempts omits the derived fields entirely.
	juggling := view.AttemptGroups["juggling"]
	if juggling.Average != nil || juggling.Max != nil || juggling.Total != nil {
		t.Fatalf("empty group must omit derived fields, got %v", juggling)
	}

	// Derived rows are produced out of band and are absent here.
	if view.Dna != nil || view.Cluster != nil || view.TestScores != nil || view.OverallScores != nil {
		t.Fatalf("derived rows should be null before computation, got %v", view)
	}
}

func TestEvaluationAccessControl(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	teamA, err := owner.createTeam("U12")
	if err != nil {
		t.Fatal(err)
	}
	teamB, err := owner.createTeam("U14")
	if err != nil {
		t.Fatal(err)
	}

	coach := env.addStaff(t, &owner, "Coach", "coach@mail.com", "coach")
	coachId := uuid.MustParse(coach.userId)
	if err := owner.assignCoach(teamA, coachId); err != nil {
		t.Fatal(err)
	}

	parent1 := env.addMember(t, &owner, "Parent One", "parent1@mail.com", "parent")
	parent1Id := uuid.MustParse(parent1.userId)
	parent2 := env.addMember(t, &owner, "Parent Two", "parent2@mail.com", "parent")
	parent2Id := uuid.MustParse(parent2.userId)

	playerA, err := owner.createPlayer(teamA, parent1Id, "Alex", "One")
	if err != nil {
		t.Fatal(err)
	}
	playerB, err := owner.createPlayer(teamB, parent2Id, "Blake", "Two")
	if err != nil {
		t.Fatal(err)
	}

	// A coach can only record evaluations for teams they coach.
	scoresB := map[string]map[string]*float64{playerB.String(): {"sprint_1": fptr(4)}}
	_, err = coach.createEvaluation(teamB, "Not My Team", scoresB)
	if errorReason(err) != "NOT_OWNER_OF_RECORD" || errorStatus(err) != http.StatusForbidden {
		t.Fatalf("coach recording for another team should be denied, got %v", err)
	}

	// Owner can record for any team in the tenant.
	if _, err := owner.createEvaluation(teamB, "Fall Testing", scoresB); err != nil {
		t.Fatal(err)
	}

	// Scores naming a player from a different team are rejected.
	wrongTeam := map[string]map[string]*float64{playerB.String(): {"sprint_1": fptr(4)}}
	_, err = coach.createEvaluation(teamA, "Wrong Roster", wrongTeam)
	if errorReason(err) != "PLAYER_NOT_FOUND" {
		t.Fatalf("scores for a player off the team should fail, got %v", err)
	}

	// Parents can only read their supervised players' evaluations.
	_, err = parent1.latestEvaluation(playerB)
	if errorReason(err) != "NOT_OWNER_OF_RECORD" || errorStatus(err) != http.StatusForbidden {
		t.Fatalf("parent reading an unrelated player should be denied, got %v", err)
	}

	// Coaches can read evaluations for their own team's players only.
	if _, err := coach.latestEvaluation(playerA); err != nil {
		t.Fatal(err)
	}
	_, err = coach.latestEvaluation(playerB)
	if errorReason(err) != "NOT_OWNER_OF_RECORD" {
		t.Fatalf("coach reading another team's player should be denied, got %v", err)
	}
}
