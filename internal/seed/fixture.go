package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filetrack/internal/models"
	"filetrack/internal/repository"

	"gopkg.in/yaml.v3"
)

// DirectoryFixture describes an organisation chart in YAML.
//
//	departments:
//	  - code: rev
//	    name: Revenue
//	    divisions:
//	      - name: Inward
//	        users:
//	          - {name: Asha Rao, email: asha@rev.gov, role: INWARD_DESK}
//	    desks:
//	      - {name: Inward-1, division: Inward, max_files_per_day: 10}
type DirectoryFixture struct {
	Departments []DepartmentFixture `yaml:"departments"`
}

type DepartmentFixture struct {
	Code      string            `yaml:"code"`
	Name      string            `yaml:"name"`
	Divisions []DivisionFixture `yaml:"divisions"`
	Desks     []DeskFixture     `yaml:"desks"`
}

type DivisionFixture struct {
	Name  string        `yaml:"name"`
	Users []UserFixture `yaml:"users"`
}

type UserFixture struct {
	Name  string      `yaml:"name"`
	Email string      `yaml:"email"`
	Role  models.Role `yaml:"role"`
}

// DeskFixture names its division by name; an empty division makes a department-wide desk.
type DeskFixture struct {
	Name           string `yaml:"name"`
	Division       string `yaml:"division"`
	MaxFilesPerDay int    `yaml:"max_files_per_day"`
}

// Directory is what a fixture created, keyed for lookups in tests and demos.
type Directory struct {
	Departments map[string]models.Department // by code
	Divisions   map[string]models.Division   // by "code/division name"
	Users       map[string]models.User       // by email
	Desks       []models.Desk
}

// LoadDirectoryFile reads and validates a fixture from disk.
func LoadDirectoryFile(path string) (*DirectoryFixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return LoadDirectory(f)
}

// LoadDirectory decodes and validates a fixture. Unknown keys are rejected.
func LoadDirectory(r io.Reader) (*DirectoryFixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx DirectoryFixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("fixture is empty")
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks references and roles before anything is written.
func (fx *DirectoryFixture) Validate() error {
	if len(fx.Departments) == 0 {
		return errors.New("fixture has no departments")
	}
	codes := make(map[string]bool)
	emails := make(map[string]bool)
	desks := make(map[string]bool)
	for _, d := range fx.Departments {
		code := strings.ToLower(strings.TrimSpace(d.Code))
		if code == "" || strings.TrimSpace(d.Name) == "" {
			return errors.New("department code and name are required")
		}
		if codes[code] {
			return fmt.Errorf("duplicate department code %q", d.Code)
		}
		codes[code] = true

		divisions := make(map[string]bool)
		for _, div := range d.Divisions {
			if strings.TrimSpace(div.Name) == "" {
				return fmt.Errorf("department %s: division name is required", d.Code)
			}
			divisions[div.Name] = true
			for _, u := range div.Users {
				if !u.Role.Valid() {
					return fmt.Errorf("user %q: invalid role %q", u.Name, u.Role)
				}
				email := strings.ToLower(strings.TrimSpace(u.Email))
				if email == "" {
					return fmt.Errorf("user %q: email is required", u.Name)
				}
				if emails[email] {
					return fmt.Errorf("duplicate user email %q", u.Email)
				}
				emails[email] = true
			}
		}
		for _, desk := range d.Desks {
			if desk.MaxFilesPerDay <= 0 {
				return fmt.Errorf("desk %q: max_files_per_day must be positive", desk.Name)
			}
			if desk.Division != "" && !divisions[desk.Division] {
				return fmt.Errorf("desk %q: unknown division %q", desk.Name, desk.Division)
			}
			if desks[desk.Name] {
				return fmt.Errorf("duplicate desk name %q", desk.Name)
			}
			desks[desk.Name] = true
		}
	}
	return nil
}

// Apply writes the fixture in one transaction.
func (fx *DirectoryFixture) Apply(ctx context.Context, store repository.Store) (*Directory, error) {
	out := &Directory{
		Departments: make(map[string]models.Department),
		Divisions:   make(map[string]models.Division),
		Users:       make(map[string]models.User),
	}
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		for _, d := range fx.Departments {
			code := strings.ToLower(strings.TrimSpace(d.Code))
			dept := models.Department{Code: code, Name: strings.TrimSpace(d.Name)}
			if err := tx.Directory().CreateDepartment(ctx, &dept); err != nil {
				return err
			}
			out.Departments[code] = dept

			divIDs := make(map[string]uint)
			for _, df := range d.Divisions {
				div := models.Division{DepartmentID: dept.ID, Name: df.Name}
				if err := tx.Directory().CreateDivision(ctx, &div); err != nil {
					return err
				}
				divIDs[df.Name] = div.ID
				out.Divisions[code+"/"+df.Name] = div

				for _, uf := range df.Users {
					user := models.User{
						Name:         uf.Name,
						Email:        strings.ToLower(strings.TrimSpace(uf.Email)),
						Role:         uf.Role,
						DepartmentID: dept.ID,
						DivisionID:   div.ID,
						IsActive:     true,
					}
					if err := tx.Directory().CreateUser(ctx, &user); err != nil {
						return err
					}
					out.Users[user.Email] = user
				}
			}

			for _, dk := range d.Desks {
				desk := models.Desk{
					Name:           dk.Name,
					DepartmentID:   dept.ID,
					MaxFilesPerDay: dk.MaxFilesPerDay,
					IsActive:       true,
				}
				if dk.Division != "" {
					id := divIDs[dk.Division]
					desk.DivisionID = &id
				}
				if err := tx.Desks().Create(ctx, &desk); err != nil {
					return err
				}
				out.Desks = append(out.Desks, desk)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
