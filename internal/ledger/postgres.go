package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const accountColumns = `id, owner_id, balance::text, status, tier, account_number, secret_hash, created_at, updated_at`

const transactionColumns = `id, sender_account_number, receiver_account_number, sender_name, receiver_name,
        amount::text, reference_num, status, COALESCE(description, ''), created_at`

// PostgresStore persists accounts and transactions in PostgreSQL. Balance
// mutations run under row locks taken in ascending id order.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateAccount inserts an account, mapping unique violations onto
// ErrDuplicateAccountNumber and ErrAccountExists.
func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) (Account, error) {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	account.UpdatedAt = account.CreatedAt

	err := s.db.QueryRow(ctx, `INSERT INTO accounts (owner_id, balance, status, tier, account_number, secret_hash, created_at, updated_at)
        VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8) RETURNING id`,
		account.OwnerID, account.Balance.String(), string(account.Status), string(account.Tier),
		account.AccountNumber, account.SecretHash, account.CreatedAt, account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "accounts_owner_id_key" {
				return Account{}, ErrAccountExists
			}
			return Account{}, ErrDuplicateAccountNumber
		}
		return Account{}, err
	}
	return account, nil
}

// AccountByNumber fetches an account by its public number.
func (s *PostgresStore) AccountByNumber(ctx context.Context, number string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	return scanAccount(row)
}

// AccountByOwner fetches the account held by the given user.
func (s *PostgresStore) AccountByOwner(ctx context.Context, ownerID string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1`, ownerID)
	return scanAccount(row)
}

// AccountNumberExists reports whether the number is already assigned.
func (s *PostgresStore) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, number).Scan(&exists)
	return exists, err
}

// UpdateSecret replaces the stored transaction secret hash.
func (s *PostgresStore) UpdateSecret(ctx context.Context, accountID int64, hash []byte) error {
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET secret_hash = $1, updated_at = $2 WHERE id = $3`, hash, s.now(), accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Close moves the account to CLOSED when its balance is zero.
func (s *PostgresStore) Close(ctx context.Context, accountID int64) (Account, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	acct, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, accountID))
	if err != nil {
		return Account{}, err
	}
	closed, err := applyClose(acct, s.now())
	if err != nil {
		return Account{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3`,
		string(closed.Status), closed.UpdatedAt, closed.ID); err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}
	return closed, nil
}

// WithinTransfer opens a database transaction, locks both account rows in
// id order and commits only when fn succeeds.
func (s *PostgresStore) WithinTransfer(ctx context.Context, senderID, receiverID int64, fn func(LedgerTx) error) error {
	firstID, secondID := lockOrder(senderID, receiverID)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rows, err := tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		[]int64{firstID, secondID})
	if err != nil {
		return err
	}
	staged := make(map[int64]Account, 2)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return err
		}
		staged[acct.ID] = acct
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if _, ok := staged[firstID]; !ok {
		return ErrAccountNotFound
	}
	if _, ok := staged[secondID]; !ok {
		return ErrAccountNotFound
	}

	if err := fn(&pgUnit{tx: tx, staged: staged, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

// ReferenceExists reports whether a transaction already carries the reference.
func (s *PostgresStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference_num = $1)`, reference).Scan(&exists)
	return exists, err
}

// Transactions lists SUCCESS transactions touching the filter's account.
func (s *PostgresStore) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
        WHERE status = $1 AND (sender_account_number = $2 OR receiver_account_number = $2)`
	args := []any{string(TransactionSuccess), filter.AccountNumber}
	argPos := 3
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argPos)
		args = append(args, filter.To)
		argPos++
	}
	if filter.Ascending {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

type pgUnit struct {
	tx     pgx.Tx
	staged map[int64]Account
	now    func() time.Time
}

func (u *pgUnit) Debit(ctx context.Context, accountID int64, amount decimal.Decimal) (Account, error) {
	acct, ok := u.staged[accountID]
	if !ok {
		return Account{}, ErrAccountOutsideUnit
	}
	updated, err := applyDebit(acct, amount, u.now())
	if err != nil {
		return Account{}, err
	}
	return u.writeBalance(ctx, updated)
}

func (u *pgUnit) Credit(ctx context.Context, accountID int64, amount decimal.Decimal) (Account, error) {
	acct, ok := u.staged[accountID]
	if !ok {
		return Account{}, ErrAccountOutsideUnit
	}
	updated, err := applyCredit(acct, amount, u.now())
	if err != nil {
		return Account{}, err
	}
	return u.writeBalance(ctx, updated)
}

func (u *pgUnit) writeBalance(ctx context.Context, acct Account) (Account, error) {
	if _, err := u.tx.Exec(ctx, `UPDATE accounts SET balance = $1::numeric, updated_at = $2 WHERE id = $3`,
		acct.Balance.String(), acct.UpdatedAt, acct.ID); err != nil {
		return Account{}, err
	}
	u.staged[acct.ID] = acct
	return acct, nil
}

// Record inserts the transaction under a savepoint so that a reference
// collision can be retried without aborting the enclosing transfer.
func (u *pgUnit) Record(ctx context.Context, txn Transaction) (Transaction, error) {
	if !ValidAmount(txn.Amount) {
		return Transaction{}, ErrInvalidAmount
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = u.now()
	}

	sp, err := u.tx.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	err = sp.QueryRow(ctx, `INSERT INTO transactions (sender_account_number, receiver_account_number, sender_name, receiver_name,
            amount, reference_num, status, description, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, NULLIF($8, ''), $9) RETURNING id`,
		txn.SenderAccountNumber, txn.ReceiverAccountNumber, txn.SenderName, txn.ReceiverName,
		txn.Amount.String(), txn.ReferenceNum, string(txn.Status), txn.Description, txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Transaction{}, ErrDuplicateReference
		}
		return Transaction{}, err
	}
	if err := sp.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acct    Account
		balance string
		status  string
		tier    string
	)
	if err := row.Scan(&acct.ID, &acct.OwnerID, &balance, &status, &tier, &acct.AccountNumber,
		&acct.SecretHash, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("parse balance for account %d: %w", acct.ID, err)
	}
	acct.Balance = amount
	acct.Status = Status(status)
	acct.Tier = Tier(tier)
	acct.CreatedAt = acct.CreatedAt.UTC()
	acct.UpdatedAt = acct.UpdatedAt.UTC()
	return acct, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn    Transaction
		amount string
		status string
	)
	if err := row.Scan(&txn.ID, &txn.SenderAccountNumber, &txn.ReceiverAccountNumber, &txn.SenderName,
		&txn.ReceiverName, &amount, &txn.ReferenceNum, &status, &txn.Description, &txn.CreatedAt); err != nil {
		return Transaction{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse amount for transaction %d: %w", txn.ID, err)
	}
	txn.Amount = parsed
	txn.Status = TransactionStatus(status)
	txn.CreatedAt = txn.CreatedAt.UTC()
	return txn, nil
}
