package tests

import (
	"fmt"
	"net/http"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 3; i++ {
		email := fmt.Sprintf("owner%d@mail.com", i)
		companyName := fmt.Sprintf("Club %d", i)

		client := env.newClient()
		res, err := client.signup("Owner", email, "owner_password", companyName)
		if err != nil {
			t.Fatal(err)
		}
		if res["user_id"] == "" || res["company_id"] == "" {
			t.Fatalf("signup should return user and company ids, got %v", res)
		}

		_, err = client.signup("Owner", email, "owner_password", companyName)
		if errorReason(err) != "EMAIL_IN_USE" || errorStatus(err) != http.StatusConflict {
			t.Fatalf("duplicate signup should fail with EMAIL_IN_USE, got %v", err)
		}

		err = client.login("wrong@mail.com", "owner_password")
		if errorStatus(err) != http.StatusNotFound {
			t.Fatalf("login with unknown email should return 404, got %v", err)
		}

		err = client.login(email, "wrong_password")
		if errorStatus(err) != http.StatusUnauthorized {
			t.Fatalf("login with wrong password should return 401, got %v", err)
		}

		if err := client.login(email, "owner_password"); err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}
		if info.Email != email || info.Role != "owner" || info.Id.String() != client.userId {
			t.Fatalf("invalid user info %v", info)
		}
		if info.EmailVerified || info.Onboarded {
			t.Fatal("new owner should start unverified and not onboarded")
		}
	}
}

func TestSignupValidation(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	_, err := client.signup("Owner", "owner@mail.com", "short7c", "Club")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("short password should fail validation, got %v", err)
	}

	_, err = client.signup("", "owner@mail.com", "owner_password", "Club")
	if errorReason(err) != "VALIDATION_ERROR" {
		t.Fatalf("missing name should fail validation, got %v", err)
	}
}

func TestEmailVerificationLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	email := "owner@mail.com"
	client := env.newClient()
	if _, err := client.signup("Owner", email, "owner_password", "Club"); err != nil {
		t.Fatal(err)
	}
	if err := client.login(email, "owner_password"); err != nil {
		t.Fatal(err)
	}

	// Signup already delivers a code, re-requesting rotates it.
	firstCode := env.emails.verificationCode(email)
	if firstCode == "" {
		t.Fatal("signup should send a verification code")
	}
	if err := client.requestVerification(); err != nil {
		t.Fatal(err)
	}
	code := env.emails.verificationCode(email)

	err := client.submitVerification("000000")
	if code == "000000" {
		t.Skip("generated code collided with the wrong-code fixture")
	}
	if errorReason(err) != "INVALID_CODE" {
		t.Fatalf("wrong code should fail with INVALID_CODE, got %v", err)
	}

	if err := client.submitVerification(code); err != nil {
		t.Fatal(err)
	}

	info, err := client.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if !info.EmailVerified {
		t.Fatal("user should be verified after submitting the code")
	}

	// The code is cleared on success, so a second submission cannot succeed.
	err = client.submitVerification(code)
	if errorReason(err) != "ALREADY_VERIFIED" {
		t.Fatalf("second submission should fail with ALREADY_VERIFIED, got %v", err)
	}

	err = client.requestVerification()
	if errorReason(err) != "ALREADY_VERIFIED" {
		t.Fatalf("requesting a code once verified should fail with ALREADY_VERIFIED, got %v", err)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	_, err := client.userInfo()
	if errorStatus(err) != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request should return 401, got %v", err)
	}

	_, err = client.listPlayers()
	if errorStatus(err) != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request should return 401, got %v", err)
	}
}
