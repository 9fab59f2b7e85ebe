package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists knowledge in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path, applies the
// schema and loads seed when the database has no persona yet.
func NewSQLiteStore(ctx context.Context, path string, seed Snapshot) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping knowledge db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seed(ctx, seed); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS persona (
			id INTEGER PRIMARY KEY,
			descricao TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS empresa (
			id INTEGER PRIMARY KEY,
			nome TEXT NOT NULL,
			descricao TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS setores (
			id INTEGER PRIMARY KEY,
			nome TEXT NOT NULL UNIQUE,
			descricao TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS funcionarios (
			id INTEGER PRIMARY KEY,
			nome TEXT NOT NULL,
			cargo TEXT,
			setor_id INTEGER REFERENCES setores(id)
		);`,
		`CREATE TABLE IF NOT EXISTS gerentes (
			id INTEGER PRIMARY KEY,
			nome TEXT NOT NULL,
			area TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS projetos (
			id INTEGER PRIMARY KEY,
			nome TEXT NOT NULL UNIQUE,
			descricao TEXT,
			status TEXT NOT NULL DEFAULT 'Ativo'
		);`,
		`CREATE TABLE IF NOT EXISTS participacao_projeto (
			funcionario_id INTEGER NOT NULL REFERENCES funcionarios(id),
			projeto_id INTEGER NOT NULL REFERENCES projetos(id),
			PRIMARY KEY (funcionario_id, projeto_id)
		);`,
		`CREATE TABLE IF NOT EXISTS conhecimentos_manuais (
			id INTEGER PRIMARY KEY,
			pergunta TEXT NOT NULL UNIQUE,
			resposta TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cerimonias (
			id INTEGER PRIMARY KEY,
			nome TEXT NOT NULL,
			descricao TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) seed(ctx context.Context, seed Snapshot) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persona`).Scan(&count); err != nil {
		return fmt.Errorf("count persona: %w", err)
	}
	if count > 0 || strings.TrimSpace(seed.Persona) == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	exec := func(query string, args ...any) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", query, err)
		}
		return res, nil
	}

	if _, err := exec(`INSERT INTO persona (descricao) VALUES (?)`, seed.Persona); err != nil {
		return err
	}
	if seed.Company != nil {
		if _, err := exec(`INSERT INTO empresa (nome, descricao) VALUES (?, ?)`, seed.Company.Name, seed.Company.Description); err != nil {
			return err
		}
	}
	sectorIDs := make(map[string]int64, len(seed.Sectors))
	for _, sec := range seed.Sectors {
		res, err := exec(`INSERT INTO setores (nome, descricao) VALUES (?, ?)`, sec.Name, sec.Description)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		sectorIDs[sec.Name] = id
	}
	employeeIDs := make(map[string]int64, len(seed.Employees))
	for _, e := range seed.Employees {
		var sector any
		if id, ok := sectorIDs[e.Sector]; ok {
			sector = id
		}
		res, err := exec(`INSERT INTO funcionarios (nome, cargo, setor_id) VALUES (?, ?, ?)`, e.Name, e.Role, sector)
		if err != nil {
			return err
		}
		id, _ := res.LastInsertId()
		employeeIDs[e.Name] = id
	}
	for _, m := range seed.Managers {
		if _, err := exec(`INSERT INTO gerentes (nome, area) VALUES (?, ?)`, m.Name, m.Area); err != nil {
			return err
		}
	}
	for _, p := range seed.Projects {
		status := p.Status
		if status == "" {
			status = "Ativo"
		}
		res, err := exec(`INSERT INTO projetos (nome, descricao, status) VALUES (?, ?, ?)`, p.Name, p.Description, status)
		if err != nil {
			return err
		}
		projectID, _ := res.LastInsertId()
		for _, name := range p.Participants {
			employeeID, ok := employeeIDs[name]
			if !ok {
				return fmt.Errorf("seed participation: unknown employee %q", name)
			}
			if _, err := exec(`INSERT INTO participacao_projeto (funcionario_id, projeto_id) VALUES (?, ?)`, employeeID, projectID); err != nil {
				return err
			}
		}
	}
	for _, a := range seed.Answers {
		if _, err := exec(`INSERT INTO conhecimentos_manuais (pergunta, resposta) VALUES (?, ?)`, a.Question, a.Answer); err != nil {
			return err
		}
	}
	for _, c := range seed.Ceremonies {
		if _, err := exec(`INSERT INTO cerimonias (nome, descricao) VALUES (?, ?)`, c.Name, c.Description); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	err := s.db.QueryRowContext(ctx, `SELECT descricao FROM persona ORDER BY id LIMIT 1`).Scan(&snap.Persona)
	if err != nil && err != sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("query persona: %w", err)
	}

	var company Company
	var companyDesc sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT nome, descricao FROM empresa ORDER BY id LIMIT 1`).Scan(&company.Name, &companyDesc)
	switch {
	case err == nil:
		company.Description = companyDesc.String
		snap.Company = &company
	case err != sql.ErrNoRows:
		return Snapshot{}, fmt.Errorf("query company: %w", err)
	}

	if err := queryRows(ctx, s.db, `SELECT nome, COALESCE(descricao, '') FROM setores ORDER BY id`, func(rows *sql.Rows) error {
		var sec Sector
		if err := rows.Scan(&sec.Name, &sec.Description); err != nil {
			return err
		}
		snap.Sectors = append(snap.Sectors, sec)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("query sectors: %w", err)
	}

	if err := queryRows(ctx, s.db, `
		SELECT f.nome, COALESCE(f.cargo, ''), COALESCE(st.nome, '')
		FROM funcionarios f LEFT JOIN setores st ON st.id = f.setor_id
		ORDER BY f.id`, func(rows *sql.Rows) error {
		var e Employee
		if err := rows.Scan(&e.Name, &e.Role, &e.Sector); err != nil {
			return err
		}
		snap.Employees = append(snap.Employees, e)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("query employees: %w", err)
	}

	if err := queryRows(ctx, s.db, `SELECT nome, COALESCE(area, '') FROM gerentes ORDER BY id`, func(rows *sql.Rows) error {
		var m Manager
		if err := rows.Scan(&m.Name, &m.Area); err != nil {
			return err
		}
		snap.Managers = append(snap.Managers, m)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("query managers: %w", err)
	}

	projectIndex := map[int64]int{}
	if err := queryRows(ctx, s.db, `SELECT id, nome, COALESCE(descricao, ''), status FROM projetos ORDER BY id`, func(rows *sql.Rows) error {
		var id int64
		var p Project
		if err := rows.Scan(&id, &p.Name, &p.Description, &p.Status); err != nil {
			return err
		}
		projectIndex[id] = len(snap.Projects)
		snap.Projects = append(snap.Projects, p)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("query projects: %w", err)
	}

	if err := queryRows(ctx, s.db, `
		SELECT pp.projeto_id, f.nome
		FROM participacao_projeto pp JOIN funcionarios f ON f.id = pp.funcionario_id
		ORDER BY pp.projeto_id, f.id`, func(rows *sql.Rows) error {
		var projectID int64
		var name string
		if err := rows.Scan(&projectID, &name); err != nil {
			return err
		}
		if i, ok := projectIndex[projectID]; ok {
			snap.Projects[i].Participants = append(snap.Projects[i].Participants, name)
		}
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("query participations: %w", err)
	}

	answers, err := s.answers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Answers = answers

	if err := queryRows(ctx, s.db, `SELECT nome, COALESCE(descricao, '') FROM cerimonias ORDER BY id`, func(rows *sql.Rows) error {
		var c Ceremony
		if err := rows.Scan(&c.Name, &c.Description); err != nil {
			return err
		}
		snap.Ceremonies = append(snap.Ceremonies, c)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("query ceremonies: %w", err)
	}

	return snap, nil
}

func (s *SQLiteStore) answers(ctx context.Context) ([]Answer, error) {
	var out []Answer
	err := queryRows(ctx, s.db, `SELECT pergunta, resposta FROM conhecimentos_manuais ORDER BY id`, func(rows *sql.Rows) error {
		var a Answer
		if err := rows.Scan(&a.Question, &a.Answer); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveAnswer(ctx context.Context, question, answer string) error {
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return ErrEmptyAnswer
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conhecimentos_manuais (pergunta, resposta) VALUES (?, ?)
		ON CONFLICT(pergunta) DO UPDATE SET resposta = excluded.resposta`, question, answer)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LookupAnswer(ctx context.Context, message string) (string, bool, error) {
	answers, err := s.answers(ctx)
	if err != nil {
		return "", false, err
	}
	answer, ok := matchAnswer(message, answers)
	return answer, ok, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func queryRows(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
