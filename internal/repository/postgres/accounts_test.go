package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/repository"
)

func TestAccountRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	createdAt := time.Now().UTC()
	studentID := "STU-001"
	account := domain.Account{
		ID:           "acc-1",
		Name:         "Ada",
		Email:        "Ada@Example.com",
		PasswordHash: "hash",
		Role:         domain.RoleStudent,
		StudentID:    &studentID,
		IsActive:     true,
		CreatedAt:    createdAt,
	}

	mock.ExpectExec(`INSERT INTO florin\.accounts`).
		WithArgs(
			"acc-1",
			"Ada",
			"ada@example.com",
			"hash",
			"student",
			(*string)(nil),
			&studentID,
			(*string)(nil),
			true,
			createdAt,
			(*time.Time)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectExec(`INSERT INTO florin\.accounts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err = repo.Create(context.Background(), domain.Account{ID: "acc-1", Email: "a@b.c", Role: domain.RoleStudent})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	createdAt := time.Now().UTC()
	department := "Computing"
	rows := pgxmock.NewRows(accountColumns).AddRow(
		"acc-1", "Ada", "ada@example.com", "hash", "admin", &department, nil, nil, true, createdAt, nil,
	)

	mock.ExpectQuery(`SELECT .+ FROM florin\.accounts WHERE email = \$1 LIMIT 1`).
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	account, err := repo.GetByEmail(context.Background(), "  ADA@example.com ")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if account.Role != domain.RoleAdmin || !account.IsActive {
		t.Fatalf("unexpected account: %+v", account)
	}
	if account.Department == nil || *account.Department != "Computing" {
		t.Fatalf("expected department to be scanned, got %v", account.Department)
	}
	if account.StudentID != nil || account.LastLogin != nil {
		t.Fatalf("expected nullable columns to stay nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM florin\.accounts WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(accountColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountRepository_TouchLastLogin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE florin\.accounts SET last_login = \$1 WHERE id = \$2`).
		WithArgs(at, "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE florin\.accounts SET last_login = \$1 WHERE id = \$2`).
		WithArgs(at, "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.TouchLastLogin(context.Background(), "acc-1", at); err != nil {
		t.Fatalf("TouchLastLogin returned error: %v", err)
	}
	if err := repo.TouchLastLogin(context.Background(), "gone", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
