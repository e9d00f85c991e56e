package service

import (
	"errors"
	"testing"
	"time"

	"packhouse/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users  map[string]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}, nextID: 1}
}

func (r *fakeUserRepo) Create(username, hash string) (int, error) {
	id := r.nextID
	r.nextID++
	r.users[username] = &models.User{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	return r.users[username], nil
}

func TestAuth_SignUpAndTokenRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "test-signing-key", time.Minute)

	id, err := svc.SignUp("operator", "s3cret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d", id)
	}
	if repo.users["operator"].PasswordHash == "s3cret" {
		t.Fatalf("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.users["operator"].PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	token, err := svc.GenerateToken("operator", "s3cret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	gotID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if gotID != id {
		t.Fatalf("parsed id = %d, want %d", gotID, id)
	}
}

func TestAuth_Rejections(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "test-signing-key", time.Minute)

	if _, err := svc.SignUp("operator", "   "); err == nil {
		t.Fatalf("blank password accepted")
	}

	if _, err := svc.GenerateToken("ghost", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	if _, err := svc.SignUp("operator", "s3cret"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := svc.GenerateToken("operator", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong password: got %v", err)
	}

	if _, err := svc.ParseToken("not-a-jwt"); err == nil {
		t.Fatalf("garbage token accepted")
	}

	// Tokens signed with a different key must not verify.
	other := NewAuthService(repo, "other-key", time.Minute)
	token, err := other.GenerateToken("operator", "s3cret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ParseToken(token); err == nil {
		t.Fatalf("cross-key token accepted")
	}
}
