package tests

import (
	"testing"

	"github.com/google/uuid"
)

func TestOnboardingStatusProgression(t *testing.T) {
	env := setupTestEnv(t)

	email := "owner@mail.com"
	client := env.newClient()
	if _, err := client.signup("Owner", email, "owner_password", "Club"); err != nil {
		t.Fatal(err)
	}
	if err := client.login(email, "owner_password"); err != nil {
		t.Fatal(err)
	}

	status, err := client.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.NextStep != "verify-email" {
		t.Fatalf("unverified user should be directed to verify-email, got %v", status.NextStep)
	}

	// Onboarding cannot be completed before verification.
	err = client.onboardStaff("owner_password_2", "", "")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("onboarding before verification should fail, got %v", err)
	}

	env.verifyEmail(t, &client, email)

	status, err = client.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.NextStep != "onboarding" {
		t.Fatalf("verified user should be directed to onboarding, got %v", status.NextStep)
	}

	if err := client.onboardStaff("owner_password_2", "Owner Name", "555-0100"); err != nil {
		t.Fatal(err)
	}
	if err := client.login(email, "owner_password_2"); err != nil {
		t.Fatal(err)
	}

	status, err = client.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.NextStep != "dashboard" {
		t.Fatalf("onboarded staff should be directed to dashboard, got %v", status.NextStep)
	}

	err = client.onboardStaff("owner_password_3", "", "")
	if errorReason(err) != "ALREADY_ONBOARDED" {
		t.Fatalf("repeated onboarding should fail with ALREADY_ONBOARDED, got %v", err)
	}
}

func TestOnboardingWrongRoleEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	err := owner.onboardParent("another_password", "", "")
	if errorReason(err) != "WRONG_ROLE_ENDPOINT" {
		t.Fatalf("owner hitting the parent endpoint should fail with WRONG_ROLE_ENDPOINT, got %v", err)
	}

	parent := env.addMember(t, &owner, "Parent", "parent@mail.com", "parent")
	err = parent.onboardStaff("parent_password", "", "")
	if errorReason(err) != "WRONG_ROLE_ENDPOINT" {
		t.Fatalf("parent hitting the staff endpoint should fail with WRONG_ROLE_ENDPOINT, got %v", err)
	}
}

func TestPlayerOnboarding(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	teamId, err := owner.createTeam("U12")
	if err != nil {
		t.Fatal(err)
	}

	player := env.addMember(t, &owner, "Pat Lee", "pat@mail.com", "player")
	playerUserId := uuid.MustParse(player.userId)

	playerId, err := owner.createPlayer(teamId, playerUserId, "Pat", "Lee")
	if err != nil {
		t.Fatal(err)
	}

	status, err := player.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.NextStep != "onboarding" {
		t.Fatalf("verified player should be directed to onboarding, got %v", status.NextStep)
	}

	// A 7 character password fails validation and must leave both the user
	// and player rows untouched.
	err = player.onboardPlayer("short7c", "2012-04-05", "male", "right")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("short password should fail validation, got %v", err)
	}

	status, err = player.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.Onboarded {
		t.Fatal("failed onboarding must not mark the user onboarded")
	}

	err = player.onboardPlayer("pat_password", "2012-04-05", "", "right")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("missing gender should fail validation, got %v", err)
	}

	if err := player.onboardPlayer("pat_password", "2012-04-05", "male", "right"); err != nil {
		t.Fatal(err)
	}
	if err := player.login("pat@mail.com", "pat_password"); err != nil {
		t.Fatal(err)
	}

	// Both the user row and the player row are updated in the same
	// transaction, so the status lands straight on dashboard.
	status, err = player.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if !status.Onboarded || status.NextStep != "dashboard" {
		t.Fatalf("onboarded player with a complete profile should reach dashboard, got %v", status)
	}

	players, err := player.listPlayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 1 || players[0].Id != playerId {
		t.Fatalf("player should see exactly their own record, got %v", players)
	}
	if !players[0].Complete || players[0].Gender != "male" || players[0].DominantFoot != "right" {
		t.Fatalf("player row should carry the onboarding fields, got %v", players[0])
	}
	if players[0].Dob == nil || *players[0].Dob != "2012-04-05" {
		t.Fatalf("player row should carry the dob, got %v", players[0].Dob)
	}
}

func TestParentOnboardingWithIncompletePlayer(t *testing.T) {
	env := setupTestEnv(t)

	owner := env.newOwner(t, "owner@mail.com", "Club")

	teamId, err := owner.createTeam("U10")
	if err != nil {
		t.Fatal(err)
	}

	parent := env.addMember(t, &owner, "Parent", "parent@mail.com", "parent")
	parentUserId := uuid.MustParse(parent.userId)

	playerId, err := owner.createPlayer(teamId, parentUserId, "Kim", "Lee")
	if err != nil {
		t.Fatal(err)
	}

	if err := parent.onboardParent("parent_password", "Parent Name", ""); err != nil {
		t.Fatal(err)
	}
	if err := parent.login("parent@mail.com", "parent_password"); err != nil {
		t.Fatal(err)
	}

	// The parent is onboarded but the supervised player profile is still
	// incomplete, so the next step is player setup for that player.
	status, err := parent.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.NextStep != "player-setup" {
		t.Fatalf("incomplete player should surface player-setup, got %v", status.NextStep)
	}
	if status.PlayerId == nil || *status.PlayerId != playerId {
		t.Fatalf("player-setup should name the incomplete player, got %v", status.PlayerId)
	}

	updates := map[string]string{"dob": "2014-01-15", "gender": "female", "dominant_foot": "left"}
	if err := parent.updatePlayer(playerId, updates); err != nil {
		t.Fatal(err)
	}

	status, err = parent.onboardingStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.NextStep != "dashboard" {
		t.Fatalf("completing the player profile should unlock the dashboard, got %v", status.NextStep)
	}
}
