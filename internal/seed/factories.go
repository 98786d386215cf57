// Package seed creates directory data and demo files for development and tests.
package seed

import (
	"context"
	"fmt"
	"strings"

	"filetrack/internal/models"
	"filetrack/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds directory entities with fake but plausible values and persists them.
type Factory struct {
	store repository.Store
	faker *gofakeit.Faker
	seq   int
}

// NewFactory creates a Factory. A fixed seed gives reproducible data.
func NewFactory(store repository.Store, seed int64) *Factory {
	return &Factory{store: store, faker: gofakeit.New(seed)}
}

func (f *Factory) next() int {
	f.seq++
	return f.seq
}

// Department creates a department with a unique short code.
func (f *Factory) Department(ctx context.Context) (*models.Department, error) {
	n := f.next()
	dept := &models.Department{
		Code: fmt.Sprintf("%s%d", strings.ToLower(f.faker.LetterN(3)), n),
		Name: f.faker.Company(),
	}
	if err := f.store.Directory().CreateDepartment(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// Division creates a division inside dept.
func (f *Factory) Division(ctx context.Context, dept *models.Department, name string) (*models.Division, error) {
	if name == "" {
		name = fmt.Sprintf("%s Section", f.faker.JobDescriptor())
	}
	div := &models.Division{DepartmentID: dept.ID, Name: name}
	if err := f.store.Directory().CreateDivision(ctx, div); err != nil {
		return nil, err
	}
	return div, nil
}

// User creates an active officer with the given role in div.
func (f *Factory) User(ctx context.Context, div *models.Division, role models.Role) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Name:         first + " " + last,
		Email:        strings.ToLower(fmt.Sprintf("%s.%s.%d@%s", first, last, f.next(), f.faker.DomainName())),
		Role:         role,
		DepartmentID: div.DepartmentID,
		DivisionID:   div.ID,
		IsActive:     true,
	}
	if err := f.store.Directory().CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FileNumber returns a unique file number in the usual DEPT/YEAR/SEQ shape.
func (f *Factory) FileNumber(dept *models.Department) string {
	return fmt.Sprintf("%s/%d/%05d", strings.ToUpper(dept.Code), f.faker.Year(), f.next())
}

// Subject returns a short file subject.
func (f *Factory) Subject() string {
	return strings.TrimSuffix(f.faker.Sentence(6), ".")
}

// Category picks a priority category, weighted towards routine work.
func (f *Factory) Category() models.PriorityCategory {
	weighted := []models.PriorityCategory{
		models.CategoryRoutine, models.CategoryRoutine, models.CategoryRoutine,
		models.CategoryUrgent, models.CategoryUrgent,
		models.CategoryImmediate,
		models.CategoryProject,
	}
	return weighted[f.faker.Number(0, len(weighted)-1)]
}

// Priority picks a display priority.
func (f *Factory) Priority() models.Priority {
	all := []models.Priority{models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent}
	return all[f.faker.Number(0, len(all)-1)]
}

// Chance reports true with probability pct/100.
func (f *Factory) Chance(pct int) bool {
	return f.faker.Number(1, 100) <= pct
}

// Pick returns a random element of users.
func (f *Factory) Pick(users []*models.User) *models.User {
	return users[f.faker.Number(0, len(users)-1)]
}
