package tests

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestListPlayersRoleScoping(t *testing.T) {
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

	player1, err := owner.createPlayer(teamA, parent1Id, "Alex", "One")
	if err != nil {
		t.Fatal(err)
	}
	player2, err := owner.createPlayer(teamB, parent2Id, "Blake", "Two")
	if err != nil {
		t.Fatal(err)
	}

	// Owner sees every player in the company.
	all, err := owner.listPlayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("owner should see both players, got %v", all)
	}

	// Coach sees only players on teams they coach.
	coached, err := coach.listPlayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(coached) != 1 || coached[0].Id != player1 {
		t.Fatalf("coach should see only their team's players, got %v", coached)
	}

	// Parents see only players they supervise, even in the same company.
	supervised, err := parent2.listPlayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(supervised) != 1 || supervised[0].Id != player2 {
		t.Fatalf("parent should see only supervised players, got %v", supervised)
	}
}

func TestUpdatePlayerAccess(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	teamId, err := owner.createTeam("U12")
	if err != nil {
		t.Fatal(err)
	}

	parent := env.addMember(t, &owner, "Parent", "parent@mail.com", "parent")
	parentId := uuid.MustParse(parent.userId)
	otherParent := env.addMember(t, &owner, "Other", "other@mail.com", "parent")

	playerId, err := owner.createPlayer(teamId, parentId, "Alex", "Lee")
	if err != nil {
		t.Fatal(err)
	}

	if err := parent.updatePlayer(playerId, map[string]string{"notes": "left footed striker"}); err != nil {
		t.Fatal(err)
	}

	// Another parent in the same company cannot touch the record.
	err = otherParent.updatePlayer(playerId, map[string]string{"notes": "x"})
	if errorReason(err) != "NOT_OWNER_OF_RECORD" || errorStatus(err) != http.StatusForbidden {
		t.Fatalf("unrelated parent should be denied with NOT_OWNER_OF_RECORD, got %v", err)
	}

	// A principal from another company is denied before any record check.
	otherOwner := env.newOwner(t, "owner2@mail.com", "Other Club")
	err = otherOwner.updatePlayer(playerId, map[string]string{"notes": "x"})
	if errorReason(err) != "CROSS_TENANT" || errorStatus(err) != http.StatusForbidden {
		t.Fatalf("cross tenant update should be denied with CROSS_TENANT, got %v", err)
	}

	err = owner.updatePlayer(playerId, map[string]string{"dob": "not-a-date"})
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("malformed dob should fail validation, got %v", err)
	}

	err = owner.updatePlayer(uuid.New(), map[string]string{"notes": "x"})
	if errorReason(err) != "PLAYER_NOT_FOUND" || errorStatus(err) != http.StatusNotFound {
		t.Fatalf("unknown player should fail with PLAYER_NOT_FOUND, got %v", err)
	}
}

func TestCreatePlayerValidation(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	teamId, err := owner.createTeam("U12")
	if err != nil {
		t.Fatal(err)
	}

	coach := env.addStaff(t, &owner, "Coach", "coach@mail.com", "coach")
	coachId := uuid.MustParse(coach.userId)

	parent := env.addMember(t, &owner, "Parent", "parent@mail.com", "parent")
	parentId := uuid.MustParse(parent.userId)

	// The supervising account must hold the parent or player role.
	_, err = owner.createPlayer(teamId, coachId, "Alex", "Lee")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("coach as supervisor should fail validation, got %v", err)
	}

	_, err = owner.createPlayer(uuid.New(), parentId, "Alex", "Lee")
	if errorReason(err) != "TEAM_NOT_FOUND" {
		t.Fatalf("unknown team should fail with TEAM_NOT_FOUND, got %v", err)
	}

	// Coaches cannot provision players.
	_, err = coach.createPlayer(teamId, parentId, "Alex", "Lee")
	if errorStatus(err) != http.StatusForbidden {
		t.Fatalf("coach creating a player should be forbidden, got %v", err)
	}
}
