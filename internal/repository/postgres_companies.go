package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresCompaniesRepository 公司Repository实现
// 域名存放在 company_domains（hostname 为主键），与 companies 在同一事务内写入
type PostgresCompaniesRepository struct {
	db *sql.DB
}

func NewPostgresCompaniesRepository(db *sql.DB) *PostgresCompaniesRepository {
	return &PostgresCompaniesRepository{db: db}
}

var _ CompaniesRepository = (*PostgresCompaniesRepository)(nil)

const companySelect = `
	SELECT
		c.id::text,
		c.name,
		c.tax_id,
		c.address,
		COALESCE(c.owner_user_id::text, '') as owner_user_id,
		c.customizations,
		c.cart,
		c.created_at,
		c.updated_at,
		ARRAY(SELECT d.hostname FROM company_domains d WHERE d.company_id = c.id ORDER BY d.position, d.hostname) as domains
	FROM companies c
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*domain.Company, error) {
	var c domain.Company
	var customizations, cart []byte
	var domains pq.StringArray
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.TaxID,
		&c.Address,
		&c.OwnerUserID,
		&customizations,
		&cart,
		&c.CreatedAt,
		&c.UpdatedAt,
		&domains,
	); err != nil {
		return nil, err
	}
	if err := scanJSONB(customizations, &c.Customizations); err != nil {
		return nil, err
	}
	if err := scanJSONB(cart, &c.Cart); err != nil {
		return nil, err
	}
	c.Domains = []string(domains)
	if c.Domains == nil {
		c.Domains = []string{}
	}
	return &c, nil
}

// GetCompany 根据 id 获取公司
func (r *PostgresCompaniesRepository) GetCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return nil, ErrCompanyNotFound
	}
	c, err := scanCompany(r.db.QueryRowContext(ctx, companySelect+` WHERE c.id = $1::uuid`, companyID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// GetCompanyByDomain 根据规范化域名获取公司（用于租户解析）
func (r *PostgresCompaniesRepository) GetCompanyByDomain(ctx context.Context, host string) (*domain.Company, error) {
	if host == "" {
		return nil, ErrCompanyNotFound
	}
	query := companySelect + `
		WHERE c.id = (SELECT company_id FROM company_domains WHERE hostname = $1)
	`
	c, err := scanCompany(r.db.QueryRowContext(ctx, query, host))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company by domain: %w", err)
	}
	return c, nil
}

func (r *PostgresCompaniesRepository) FindDomainOwners(ctx context.Context, hosts []string) (map[string]string, error) {
	return findDomainOwners(ctx, r.db, hosts, "")
}

// findDomainOwners returns host -> owner for hosts claimed by any company other than excludeID.
func findDomainOwners(ctx context.Context, q queryer, hosts []string, excludeID string) (map[string]string, error) {
	owners := map[string]string{}
	if len(hosts) == 0 {
		return owners, nil
	}
	query := `SELECT hostname, company_id::text FROM company_domains WHERE hostname = ANY($1)`
	args := []any{pq.Array(hosts)}
	if excludeID != "" {
		query += ` AND company_id <> $2::uuid`
		args = append(args, excludeID)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var host, owner string
		if err := rows.Scan(&host, &owner); err != nil {
			return nil, fmt.Errorf("failed to scan domain owner: %w", err)
		}
		owners[host] = owner
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate domain owners: %w", err)
	}
	return owners, nil
}

// ListCompanies 查询公司列表；OwnerUserID 与 OrID 之间是 OR 关系
func (r *PostgresCompaniesRepository) ListCompanies(ctx context.Context, filter domain.CompanyFilters) ([]*domain.Company, error) {
	where := []string{}
	args := []any{}
	argIdx := 1

	var scope []string
	if filter.OwnerUserID != "" {
		scope = append(scope, fmt.Sprintf("c.owner_user_id::text = $%d", argIdx))
		args = append(args, filter.OwnerUserID)
		argIdx++
	}
	if filter.OrID != "" {
		scope = append(scope, fmt.Sprintf("c.id::text = $%d", argIdx))
		args = append(args, filter.OrID)
		argIdx++
	}
	if len(scope) > 0 {
		where = append(where, "("+strings.Join(scope, " OR ")+")")
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("c.name ILIKE $%d", argIdx))
		args = append(args, "%"+filter.Search+"%")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, companySelect+whereClause+` ORDER BY c.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := []*domain.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}
	return companies, nil
}

// CreateCompany 创建公司并写入域名
func (r *PostgresCompaniesRepository) CreateCompany(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	c := *company
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	customizations, cart, err := companyJSON(&c)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkDomainsFree(ctx, tx, c.Domains, ""); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO companies (id, name, tax_id, address, owner_user_id, customizations, cart)
		VALUES ($1::uuid, $2, $3, $4, $5::uuid, $6, $7)
		RETURNING created_at, updated_at
	`, c.ID, c.Name, c.TaxID, c.Address, nullString(c.OwnerUserID), customizations, cart,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, r.mapWriteError(ctx, err, &c)
	}
	if err := insertDomains(ctx, tx, c.ID, c.Domains); err != nil {
		return nil, r.mapWriteError(ctx, err, &c)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit company: %w", err)
	}
	if c.Domains == nil {
		c.Domains = []string{}
	}
	return &c, nil
}

// UpdateCompany 更新公司字段并整体替换域名列表
func (r *PostgresCompaniesRepository) UpdateCompany(ctx context.Context, company *domain.Company) (*domain.Company, error) {
	if _, err := uuid.Parse(company.ID); err != nil {
		return nil, ErrCompanyNotFound
	}
	c := *company
	customizations, cart, err := companyJSON(&c)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkDomainsFree(ctx, tx, c.Domains, c.ID); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE companies
		SET name = $2, tax_id = $3, address = $4, owner_user_id = $5::uuid,
		    customizations = $6, cart = $7, updated_at = NOW()
		WHERE id = $1::uuid
		RETURNING created_at, updated_at
	`, c.ID, c.Name, c.TaxID, c.Address, nullString(c.OwnerUserID), customizations, cart,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrCompanyNotFound
		}
		return nil, r.mapWriteError(ctx, err, &c)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM company_domains WHERE company_id = $1::uuid`, c.ID); err != nil {
		return nil, fmt.Errorf("failed to clear company domains: %w", err)
	}
	if err := insertDomains(ctx, tx, c.ID, c.Domains); err != nil {
		return nil, r.mapWriteError(ctx, err, &c)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit company: %w", err)
	}
	if c.Domains == nil {
		c.Domains = []string{}
	}
	return &c, nil
}

// DeleteCompany 删除公司；域名与用户随外键级联删除
func (r *PostgresCompaniesRepository) DeleteCompany(ctx context.Context, companyID string) error {
	if _, err := uuid.Parse(companyID); err != nil {
		return ErrCompanyNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1::uuid`, companyID)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			return apperr.Conflict("", "company still owns catalog or orders")
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

func (r *PostgresCompaniesRepository) CountCompanyResources(ctx context.Context, companyID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products WHERE company_id = $1::uuid) +
			(SELECT COUNT(*) FROM categories WHERE company_id = $1::uuid) +
			(SELECT COUNT(*) FROM orders WHERE company_id = $1::uuid)
	`, companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count company resources: %w", err)
	}
	return n, nil
}

func companyJSON(c *domain.Company) (customizations, cart []byte, err error) {
	if customizations, err = jsonb(c.Customizations); err != nil {
		return nil, nil, err
	}
	if cart, err = jsonb(c.Cart); err != nil {
		return nil, nil, err
	}
	return customizations, cart, nil
}

// checkDomainsFree reports every requested domain already owned by another company.
func checkDomainsFree(ctx context.Context, q queryer, domains []string, companyID string) error {
	owners, err := findDomainOwners(ctx, q, domains, companyID)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return nil
	}
	taken := make([]string, 0, len(owners))
	for h := range owners {
		taken = append(taken, h)
	}
	sort.Strings(taken)
	return tenancy.DomainConflict(taken)
}

func insertDomains(ctx context.Context, q queryer, companyID string, domains []string) error {
	for i, d := range domains {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO company_domains (hostname, company_id, position) VALUES ($1, $2::uuid, $3)`,
			d, companyID, i,
		); err != nil {
			return err
		}
	}
	return nil
}

// mapWriteError translates constraint violations into conflicts; a domain claimed by a
// concurrent writer after checkDomainsFree also ends up here.
func (r *PostgresCompaniesRepository) mapWriteError(ctx context.Context, err error, c *domain.Company) error {
	code, constraint := pqErrorCode(err)
	switch {
	case code == pqUniqueViolation && constraint == "companies_tax_id_key":
		return fieldConflict("cnpj", msgCompanyTaxIDTaken, c.TaxID)
	case code == pqUniqueViolation && constraint == "company_domains_pkey":
		if cerr := checkDomainsFree(ctx, r.db, c.Domains, c.ID); cerr != nil {
			return cerr
		}
		return tenancy.DomainConflict(c.Domains)
	case code == pqForeignKeyViolation:
		return apperr.Invalid("owner user does not exist",
			apperr.Detail{Field: "userId", Message: "not found", Value: c.OwnerUserID})
	}
	return fmt.Errorf("failed to save company: %w", err)
}
