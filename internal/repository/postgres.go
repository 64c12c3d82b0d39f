// Package repository contains the PostgreSQL data access layer.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/clubedecampo/membership-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrMemberExists is returned when a member with the same title number or CPF is already registered.
var (
	ErrMemberExists = errors.New("member already exists")
	// ErrMemberNotFound is returned when no member matches the given title number.
	ErrMemberNotFound = errors.New("member not found")
	// ErrDocumentExists is returned when a dependent or employee CPF is already registered.
	ErrDocumentExists = errors.New("document already registered")
	// ErrPaymentNotFound is returned when a member has no payment record matching the query.
	ErrPaymentNotFound = errors.New("payment not found")
)

// PostgresRepository provides access to the membership data store in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository and initializes the schema via migrations.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateMember registers a new member and returns its row id.
func (r *PostgresRepository) CreateMember(ctx context.Context, m *model.Member) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO members (title_number, name, cpf, birth_date, postal_code, street, building_number, city, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		m.TitleNumber, m.Name, m.CPF, m.BirthDate, m.PostalCode, m.Street, m.BuildingNumber, m.City, m.State,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: title %d", ErrMemberExists, m.TitleNumber)
		}
		return 0, fmt.Errorf("create member: %w", err)
	}
	return id, nil
}

const memberColumns = `id, title_number, name, cpf, birth_date, postal_code, street, building_number, city, state, created_at`

func scanMember(row pgx.Row) (*model.Member, error) {
	var m model.Member
	err := row.Scan(&m.ID, &m.TitleNumber, &m.Name, &m.CPF, &m.BirthDate,
		&m.PostalCode, &m.Street, &m.BuildingNumber, &m.City, &m.State, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemberByTitle returns the member registered under the given title number.
func (r *PostgresRepository) GetMemberByTitle(ctx context.Context, title int64) (*model.Member, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE title_number = $1`,
		title,
	)

	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: title %d", ErrMemberNotFound, title)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	return m, nil
}

// MemberFilter narrows a member roster query. Zero values match everything.
type MemberFilter struct {
	TitleNumber int64
	CPF         string
}

// FindMembers returns the members matching the filter ordered by title number.
func (r *PostgresRepository) FindMembers(ctx context.Context, filter MemberFilter) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members`
	args := []any{}

	if filter.TitleNumber != 0 {
		args = append(args, filter.TitleNumber)
		query += ` WHERE title_number = $` + strconv.Itoa(len(args))
	}
	if filter.CPF != "" {
		args = append(args, filter.CPF)
		if len(args) == 1 {
			query += ` WHERE`
		} else {
			query += ` AND`
		}
		query += ` cpf = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY title_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return members, nil
}

// CountMembers returns the total number of registered members.
func (r *PostgresRepository) CountMembers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM members`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

// CreateDependent registers a dependent under a member's title and returns its row id.
func (r *PostgresRepository) CreateDependent(ctx context.Context, d *model.Dependent) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO dependents (title_number, name, cpf, birth_date, relationship)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		d.TitleNumber, d.Name, d.CPF, d.BirthDate, d.Relationship,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				return 0, fmt.Errorf("%w: title %d", ErrMemberNotFound, d.TitleNumber)
			case pgerrcode.UniqueViolation:
				return 0, fmt.Errorf("%w: dependent cpf", ErrDocumentExists)
			}
		}
		return 0, fmt.Errorf("create dependent: %w", err)
	}
	return id, nil
}

// GetDependentsByTitle returns the dependents registered under a member's title.
func (r *PostgresRepository) GetDependentsByTitle(ctx context.Context, title int64) ([]model.Dependent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title_number, name, cpf, birth_date, relationship, created_at
		 FROM dependents
		 WHERE title_number = $1
		 ORDER BY name`,
		title,
	)
	if err != nil {
		return nil, fmt.Errorf("select dependents: %w", err)
	}
	defer rows.Close()

	var dependents []model.Dependent
	for rows.Next() {
		var d model.Dependent
		if err := rows.Scan(&d.ID, &d.TitleNumber, &d.Name, &d.CPF, &d.BirthDate, &d.Relationship, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		dependents = append(dependents, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return dependents, nil
}

// CreateEmployee registers a club employee and returns its row id.
func (r *PostgresRepository) CreateEmployee(ctx context.Context, e *model.Employee) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO employees (name, cpf, role, postal_code, street, building_number, city, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		e.Name, e.CPF, e.Role, e.PostalCode, e.Street, e.BuildingNumber, e.City, e.State,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: employee cpf", ErrDocumentExists)
		}
		return 0, fmt.Errorf("create employee: %w", err)
	}
	return id, nil
}

// GetEmployees returns all registered employees ordered by name.
func (r *PostgresRepository) GetEmployees(ctx context.Context) ([]model.Employee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, cpf, role, postal_code, street, building_number, city, state, created_at
		 FROM employees
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.CPF, &e.Role,
			&e.PostalCode, &e.Street, &e.BuildingNumber, &e.City, &e.State, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return employees, nil
}

// CreateVisitor registers a visitor and returns its row id.
func (r *PostgresRepository) CreateVisitor(ctx context.Context, v *model.Visitor) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO visitors (name, cpf, phone, address, postal_code)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		v.Name, v.CPF, v.Phone, v.Address, v.PostalCode,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create visitor: %w", err)
	}
	return id, nil
}

// CreateAttendance records a member check-in and returns its row id.
func (r *PostgresRepository) CreateAttendance(ctx context.Context, title int64, enteredAt time.Time) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attendance (title_number, entered_at) VALUES ($1, $2) RETURNING id`,
		title, enteredAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, fmt.Errorf("%w: title %d", ErrMemberNotFound, title)
		}
		return 0, fmt.Errorf("create attendance: %w", err)
	}
	return id, nil
}

// GetAttendance returns check-ins ordered from most recent to oldest.
func (r *PostgresRepository) GetAttendance(ctx context.Context) ([]model.Attendance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title_number, entered_at FROM attendance ORDER BY entered_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select attendance: %w", err)
	}
	defer rows.Close()

	var entries []model.Attendance
	for rows.Next() {
		var a model.Attendance
		if err := rows.Scan(&a.ID, &a.TitleNumber, &a.EnteredAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		entries = append(entries, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// CountAttendanceBetween returns the number of check-ins in the half-open interval [from, to).
func (r *PostgresRepository) CountAttendanceBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendance WHERE entered_at >= $1 AND entered_at < $2`,
		from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

const paymentColumns = `id, title_number, paid_at, method, coverage_months, status, created_at`

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		p      model.PaymentRecord
		method string
		status string
	)
	err := row.Scan(&p.ID, &p.TitleNumber, &p.PaidAt, &method, &p.CoverageMonths, &status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

// CreatePayment appends a payment record and returns its row id.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.PaymentRecord) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (title_number, paid_at, method, coverage_months, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.TitleNumber, p.PaidAt, string(p.Method), p.CoverageMonths, string(p.Status),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, fmt.Errorf("%w: title %d", ErrMemberNotFound, p.TitleNumber)
		}
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

// GetLatestPayment returns the most recent payment record of a member by
// payment timestamp, regardless of status.
func (r *PostgresRepository) GetLatestPayment(ctx context.Context, title int64) (*model.PaymentRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE title_number = $1
		 ORDER BY paid_at DESC
		 LIMIT 1`,
		title,
	)

	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: title %d", ErrPaymentNotFound, title)
		}
		return nil, fmt.Errorf("get latest payment: %w", err)
	}

	return p, nil
}

// GetLatestPendingPayments returns, for every member with outstanding dues, the
// most recent pending payment record, ordered by title number.
func (r *PostgresRepository) GetLatestPendingPayments(ctx context.Context) ([]model.PaymentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (title_number) `+paymentColumns+`
		 FROM payments
		 WHERE status = $1
		 ORDER BY title_number, paid_at DESC`,
		string(model.PaymentStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("select pending payments: %w", err)
	}
	defer rows.Close()

	var payments []model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// UpdatePaymentStatus transitions every payment record of a member currently in
// fromStatus to toStatus and returns the number of rows affected. Scoping the
// update to the status predicate makes concurrent settles of the same member
// safe without a transaction: the second one matches zero rows.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, title int64, from, to model.PaymentStatus) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $3 WHERE title_number = $1 AND status = $2`,
		title, string(from), string(to),
	)
	if err != nil {
		return 0, fmt.Errorf("update payment status: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// CountPendingPayments returns the number of payment records awaiting settlement.
func (r *PostgresRepository) CountPendingPayments(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE status = $1`,
		string(model.PaymentStatusPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending payments: %w", err)
	}
	return count, nil
}
