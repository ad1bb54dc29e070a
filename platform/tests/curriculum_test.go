package tests

import (
	"net/http"
	"testing"
)

func TestCurriculumAuthorScoping(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	coach1 := env.addStaff(t, &owner, "Coach One", "coach1@mail.com", "coach")
	coach2 := env.addStaff(t, &owner, "Coach Two", "coach2@mail.com", "coach")

	ownerCurriculum, err := owner.createCurriculum("Preseason", []string{"sprint", "agility"})
	if err != nil {
		t.Fatal(err)
	}
	coach1Curriculum, err := coach1.createCurriculum("Ball Mastery", []string{"juggling", "dribbling"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := coach2.createCurriculum("Shooting Drills", []string{"shooting"}); err != nil {
		t.Fatal(err)
	}

	// Coaches see only curriculums they authored.
	visible, err := coach1.listCurriculums()
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].Id != coach1Curriculum {
		t.Fatalf("coach should see only their own curriculums, got %v", visible)
	}

	// Owner sees every curriculum in the company.
	all, err := owner.listCurriculums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("owner should see all curriculums, got %v", all)
	}

	// Parents hold no curriculum grant at all.
	parent := env.addMember(t, &owner, "Parent", "parent@mail.com", "parent")
	_, err = parent.listCurriculums()
	if errorReason(err) != "WRONG_ROLE" || errorStatus(err) != http.StatusForbidden {
		t.Fatalf("parent listing curriculums should be denied with WRONG_ROLE, got %v", err)
	}
	_, err = parent.createCurriculum("Nope", []string{"sprint"})
	if errorStatus(err) != http.StatusForbidden {
		t.Fatalf("parent creating a curriculum should be forbidden, got %v", err)
	}

	// A coach cannot delete another author's curriculum, the owner can.
	err = coach2.Delete("/curriculum/" + coach1Curriculum.String()).Do(nil)
	if errorReason(err) != "NOT_OWNER_OF_RECORD" {
		t.Fatalf("coach deleting another author's curriculum should be denied, got %v", err)
	}
	if err := owner.Delete("/curriculum/" + ownerCurriculum.String()).Do(nil); err != nil {
		t.Fatal(err)
	}

	remaining, err := owner.listCurriculums()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("deleted curriculum should be gone, got %v", remaining)
	}

	// Curriculums are tenant scoped.
	otherOwner := env.newOwner(t, "owner2@mail.com", "Other Club")
	other, err := otherOwner.listCurriculums()
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("other tenant should see no curriculums, got %v", other)
	}
}

func TestCurriculumValidation(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	_, err := owner.createCurriculum("", []string{"sprint"})
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("missing name should fail validation, got %v", err)
	}

	_, err = owner.createCurriculum("Empty", nil)
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("empty test list should fail validation, got %v", err)
	}
}
