package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	treasurydomain "github.com/tollgate-ai/tollgate/internal/treasury/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTreasury(t *testing.T) (treasurydomain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	err = db.Exec(`CREATE TABLE treasury_balances (
		id INTEGER PRIMARY KEY,
		workspace_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (workspace_id, token)
	)`).Error
	if err != nil {
		t.Fatalf("prepare schema: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return Provide(node), db, node
}

func TestDebitIfSufficient(t *testing.T) {
	repo, db, node := setupTreasury(t)
	ctx := context.Background()
	workspaceID := node.Generate()

	if _, err := repo.Credit(ctx, db, workspaceID, "MNEE", 1000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	result, err := repo.DebitIfSufficient(ctx, db, workspaceID, "MNEE", 300)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !result.OK || result.NewBalance != 700 {
		t.Fatalf("debit result = %+v, want OK with balance 700", result)
	}

	// A debit beyond the balance must not go through, not even partially.
	result, err = repo.DebitIfSufficient(ctx, db, workspaceID, "MNEE", 701)
	if err != nil {
		t.Fatalf("over-debit: %v", err)
	}
	if result.OK {
		t.Fatalf("over-debit succeeded")
	}
	balance, err := repo.Balance(ctx, db, workspaceID, "MNEE")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 700 {
		t.Fatalf("balance after refused debit = %d, want 700", balance)
	}
}

func TestDebitRejectsInvalidInput(t *testing.T) {
	repo, db, node := setupTreasury(t)
	ctx := context.Background()
	workspaceID := node.Generate()

	if _, err := repo.DebitIfSufficient(ctx, db, workspaceID, "MNEE", 0); err != treasurydomain.ErrInvalidAmount {
		t.Fatalf("zero debit err = %v, want ErrInvalidAmount", err)
	}
	if _, err := repo.DebitIfSufficient(ctx, db, workspaceID, "", 10); err != treasurydomain.ErrInvalidToken {
		t.Fatalf("empty token err = %v, want ErrInvalidToken", err)
	}
	if _, err := repo.Credit(ctx, db, workspaceID, "MNEE", -5); err != treasurydomain.ErrInvalidAmount {
		t.Fatalf("negative credit err = %v, want ErrInvalidAmount", err)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo, db, node := setupTreasury(t)
	ctx := context.Background()
	workspaceID := node.Generate()

	if _, err := repo.Credit(ctx, db, workspaceID, "MNEE", 500); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 20 callers race for 100 each; only 5 can win.
	const callers = 20
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := repo.DebitIfSufficient(ctx, db, workspaceID, "MNEE", 100)
			if err != nil {
				t.Errorf("concurrent debit: %v", err)
				return
			}
			if result.OK {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 5 {
		t.Fatalf("winning debits = %d, want 5", won)
	}

	balance, err := repo.Balance(ctx, db, workspaceID, "MNEE")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("final balance = %d, want 0", balance)
	}
}

func TestCreditUpserts(t *testing.T) {
	repo, db, node := setupTreasury(t)
	ctx := context.Background()
	workspaceID := node.Generate()

	first, err := repo.Credit(ctx, db, workspaceID, "mnee", 100)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if first != 100 {
		t.Fatalf("first credit balance = %d, want 100", first)
	}

	// Token symbols normalize to upper case onto the same row.
	second, err := repo.Credit(ctx, db, workspaceID, "MNEE", 50)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if second != 150 {
		t.Fatalf("second credit balance = %d, want 150", second)
	}
}
