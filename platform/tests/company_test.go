package tests

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestCreateMember(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	coach := env.addMember(t, &owner, "Coach", "coach@mail.com", "coach")
	info, err := coach.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Role != "coach" || info.Onboarded {
		t.Fatalf("invited coach should be a non onboarded coach, got %v", info)
	}

	_, err = owner.createMember("Dup", "coach@mail.com", "coach")
	if errorReason(err) != "EMAIL_IN_USE" {
		t.Fatalf("duplicate member email should fail with EMAIL_IN_USE, got %v", err)
	}

	_, err = owner.createMember("Bad", "bad@mail.com", "owner")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("provisioning an owner should fail validation, got %v", err)
	}

	// Coaches hold no member management grant.
	_, err = coach.createMember("Nope", "nope@mail.com", "parent")
	if errorStatus(err) != http.StatusForbidden {
		t.Fatalf("coach creating members should be forbidden, got %v", err)
	}
}

func TestUpdateMember(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")
	ownerId := uuid.MustParse(owner.userId)

	admin := env.addStaff(t, &owner, "Admin", "admin@mail.com", "admin")

	coach := env.addStaff(t, &owner, "Coach", "coach@mail.com", "coach")
	coachId := uuid.MustParse(coach.userId)

	if err := admin.updateMember(coachId, map[string]string{"name": "Coach Renamed"}); err != nil {
		t.Fatal(err)
	}
	info, err := coach.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Coach Renamed" {
		t.Fatalf("member name should be updated, got %v", info.Name)
	}

	// An admin may not edit the owner.
	err = admin.updateMember(ownerId, map[string]string{"name": "Hijacked"})
	if errorReason(err) != "ADMIN_CANNOT_EDIT_OWNER" || errorStatus(err) != http.StatusForbidden {
		t.Fatalf("admin editing the owner should fail with ADMIN_CANNOT_EDIT_OWNER, got %v", err)
	}

	// Even the owner cannot change the owner role outside the transfer flow.
	err = owner.updateMember(ownerId, map[string]string{"role": "admin"})
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("changing the owner role should fail validation, got %v", err)
	}

	// An email change resets verification.
	if err := owner.updateMember(coachId, map[string]string{"email": "coach2@mail.com"}); err != nil {
		t.Fatal(err)
	}
	info, err = coach.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Email != "coach2@mail.com" || info.EmailVerified {
		t.Fatalf("email change should reset verification, got %v", info)
	}

	// Members of another tenant are unreachable.
	otherOwner := env.newOwner(t, "owner2@mail.com", "Other Club")
	err = otherOwner.updateMember(coachId, map[string]string{"name": "x"})
	if errorReason(err) != "CROSS_TENANT" {
		t.Fatalf("cross tenant member update should be denied, got %v", err)
	}
}

func TestResendInvite(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	parentId, err := owner.createMember("Parent", "parent@mail.com", "parent")
	if err != nil {
		t.Fatal(err)
	}
	firstPassword := env.emails.invitePassword("parent@mail.com")

	if err := owner.resendInvite(parentId); err != nil {
		t.Fatal(err)
	}
	secondPassword := env.emails.invitePassword("parent@mail.com")
	if secondPassword == "" || secondPassword == firstPassword {
		t.Fatal("resend should rotate the temporary password")
	}

	parent := env.newClient()
	if err := parent.login("parent@mail.com", firstPassword); errorStatus(err) != http.StatusUnauthorized {
		t.Fatalf("old temporary password should stop working, got %v", err)
	}
	if err := parent.login("parent@mail.com", secondPassword); err != nil {
		t.Fatal(err)
	}

	// Once onboarded, invites can no longer be re-sent.
	env.verifyEmail(t, &parent, "parent@mail.com")
	if err := parent.onboardParent("parent_password", "", ""); err != nil {
		t.Fatal(err)
	}
	err = owner.resendInvite(parentId)
	if errorReason(err) != "ALREADY_ONBOARDED" || errorStatus(err) != http.StatusConflict {
		t.Fatalf("resending to an onboarded member should fail, got %v", err)
	}
}

func TestListAdminsIsOwnerOnly(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	admin := env.addStaff(t, &owner, "Admin", "admin@mail.com", "admin")
	adminId := uuid.MustParse(admin.userId)

	admins, err := owner.listAdmins()
	if err != nil {
		t.Fatal(err)
	}
	if len(admins) != 1 || admins[0].Id != adminId {
		t.Fatalf("admin list is wrong, got %v", admins)
	}

	_, err = admin.listAdmins()
	if errorStatus(err) != http.StatusForbidden {
		t.Fatalf("admins cannot list admins, got %v", err)
	}
}

func TestCompanyUpdate(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	body := map[string]string{"name": "Renamed Club", "website": "https://club.example"}
	if err := owner.Post("/company/update").Json(body).Do(nil); err != nil {
		t.Fatal(err)
	}

	company, err := owner.companyInfo()
	if err != nil {
		t.Fatal(err)
	}
	if company.Name != "Renamed Club" || company.Website != "https://club.example" {
		t.Fatalf("company update did not apply, got %v", company)
	}

	// Coaches can view the company but not edit it.
	coach := env.addStaff(t, &owner, "Coach", "coach@mail.com", "coach")
	if _, err := coach.companyInfo(); err != nil {
		t.Fatal(err)
	}
	err = coach.Post("/company/update").Json(body).Do(nil)
	if errorStatus(err) != http.StatusForbidden {
		t.Fatalf("coach editing the company should be forbidden, got %v", err)
	}
}

func TestDemoteCoachClearsTeamAssignment(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	coach := env.addStaff(t, &owner, "Coach", "coach@mail.com", "coach")
	coachId := uuid.MustParse(coach.userId)

	teamId, err := owner.createTeam("U10")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.assignCoach(teamId, coachId); err != nil {
		t.Fatal(err)
	}

	teams, err := owner.listTeams()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 || teams[0].CoachId == nil || *teams[0].CoachId != coachId {
		t.Fatalf("team should reference its coach before the role change, got %v", teams)
	}

	if err := owner.updateMember(coachId, map[string]string{"role": "parent"}); err != nil {
		t.Fatal(err)
	}

	info, err := coach.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Role != "parent" {
		t.Fatalf("member role should be parent after the update, got %v", info.Role)
	}

	teams, err = owner.listTeams()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 || teams[0].CoachId != nil {
		t.Fatalf("demoting a coach should clear their team assignments, got %v", teams)
	}
}

func TestLogoUploadAndReplacement(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	company, err := owner.companyInfo()
	if err != nil {
		t.Fatal(err)
	}

	pngUrl, err := owner.uploadLogo("crest.png", []byte("png bytes"))
	if err != nil {
		t.Fatal(err)
	}
	pngPath := filepath.Join(env.storageDir, "logos", fmt.Sprintf("%v.png", company.Id))
	if _, err := os.Stat(pngPath); err != nil {
		t.Fatalf("uploaded logo should exist on disk: %v", err)
	}

	jpgUrl, err := owner.uploadLogo("crest.jpg", []byte("jpg bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if jpgUrl == pngUrl {
		t.Fatalf("replacing the logo with a new extension should change the url, got %v", jpgUrl)
	}
	if _, err := os.Stat(pngPath); !os.IsNotExist(err) {
		t.Fatalf("replaced logo file should be removed, stat returned %v", err)
	}
	jpgPath := filepath.Join(env.storageDir, "logos", fmt.Sprintf("%v.jpg", company.Id))
	if _, err := os.Stat(jpgPath); err != nil {
		t.Fatalf("replacement logo should exist on disk: %v", err)
	}

	company, err = owner.companyInfo()
	if err != nil {
		t.Fatal(err)
	}
	if company.LogoUrl != jpgUrl {
		t.Fatalf("company logo url should point at the replacement, got %v", company.LogoUrl)
	}
}
