package tests

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"playerlab/platform/auth"
	"playerlab/platform/schema"
	"playerlab/platform/services"
	"playerlab/platform/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// emailCapture implements email.Sender and records every message so tests can
// read verification codes and temporary passwords instead of receiving mail.
type emailCapture struct {
	mu sync.Mutex

	verificationCodes map[string]string
	invitePasswords   map[string]string
}

func newEmailCapture() *emailCapture {
	return &emailCapture{
		verificationCodes: make(map[string]string),
		invitePasswords:   make(map[string]string),
	}
}

func (e *emailCapture) SendVerificationEmail(address, code, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verificationCodes[address] = code
	return nil
}

func (e *emailCapture) SendInviteEmail(address, name, companyName, tempPassword string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invitePasswords[address] = tempPassword
	return nil
}

func (e *emailCapture) verificationCode(address string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verificationCodes[address]
}

func (e *emailCapture) invitePassword(address string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invitePasswords[address]
}

type testEnv struct {
	api        chi.Router
	db         *gorm.DB
	emails     *emailCapture
	storageDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	if err := os.MkdirAll(storagePath, 0777); err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	sessions := auth.NewSessionProvider(db, auth.NewAuditLogger(new(bytes.Buffer)), []byte("290zcv02ai249"))

	emails := newEmailCapture()

	platform := services.NewPlatform(db, sessions, emails, storage.NewSharedDisk(storagePath, "http://localhost/uploads"))

	return &testEnv{api: platform.Routes(), db: db, emails: emails, storageDir: storagePath}
}

func (env *testEnv) newClient() client {
	return client{api: env.api}
}

// newOwner signs up a company owner and walks them through verification and
// onboarding so tests start from a fully set up tenant.
func (env *testEnv) newOwner(t *testing.T, email, companyName string) client {
	c := env.newClient()

	if _, err := c.signup("Owner "+companyName, email, "owner_password", companyName); err != nil {
		t.Fatal(err)
	}
	if err := c.login(email, "owner_password"); err != nil {
		t.Fatal(err)
	}
	env.verifyEmail(t, &c, email)
	if err := c.onboardStaff("owner_password_2", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.login(email, "owner_password_2"); err != nil {
		t.Fatal(err)
	}

	return c
}

// addMember provisions a member through the invite flow and logs them in with
// the captured temporary password. The member is verified but not onboarded.
func (env *testEnv) addMember(t *testing.T, owner *client, name, email, role string) client {
	userId, err := owner.createMember(name, email, role)
	if err != nil {
		t.Fatal(err)
	}

	c := env.newClient()
	tempPassword := env.emails.invitePassword(email)
	if tempPassword == "" {
		t.Fatalf("no invite email captured for %v", email)
	}
	if err := c.login(email, tempPassword); err != nil {
		t.Fatal(err)
	}
	if c.userId != userId.String() {
		t.Fatalf("member login returned user %v, expected %v", c.userId, userId)
	}
	env.verifyEmail(t, &c, email)

	return c
}

// addStaff is addMember plus staff onboarding, for admin and coach roles.
func (env *testEnv) addStaff(t *testing.T, owner *client, name, email, role string) client {
	c := env.addMember(t, owner, name, email, role)
	password := fmt.Sprintf("%v_password", role)
	if err := c.onboardStaff(password, name, ""); err != nil {
		t.Fatal(err)
	}
	if err := c.login(email, password); err != nil {
		t.Fatal(err)
	}
	return c
}

func (env *testEnv) verifyEmail(t *testing.T, c *client, email string) {
	if err := c.requestVerification(); err != nil {
		t.Fatal(err)
	}
	code := env.emails.verificationCode(email)
	if code == "" {
		t.Fatalf("no verification email captured for %v", email)
	}
	if err := c.submitVerification(code); err != nil {
		t.Fatal(err)
	}
}
