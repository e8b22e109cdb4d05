package anndb

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/vidlabel/pkg/gen"
)

// DefaultClasses is the class set that a new project starts with
var DefaultClasses = []string{"good-cup", "bad-cup", "no-cup"}

var ErrDuplicateProjectName = errors.New("A project with that name already exists")
var ErrLastClass = errors.New("A project must keep at least one class")

func (a *AnnDB) CreateProject(userID int64, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("Project name may not be empty")
	}
	now := dbh.MakeIntTime(time.Now())
	proj := Project{
		UserID:    userID,
		Name:      name,
		Classes:   dbh.MakeJSONField(gen.CopySlice(DefaultClasses)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.DB.Create(&proj).Error; err != nil {
		if dbh.IsKeyViolation(err) {
			return nil, ErrDuplicateProjectName
		}
		return nil, err
	}
	return &proj, nil
}

func (a *AnnDB) GetProject(id int64) (*Project, error) {
	proj := Project{}
	if err := a.DB.First(&proj, id).Error; err != nil {
		return nil, err
	}
	return &proj, nil
}

// UserProjects returns a user's projects, most recently touched first
func (a *AnnDB) UserProjects(userID int64) ([]Project, error) {
	var projects []Project
	return projects, a.DB.Where("user_id = ?", userID).Order("updated_at DESC").Find(&projects).Error
}

// AddClass adds a class to the project's class set and returns the new set.
// Adding a class that is already present is a no-op.
func (a *AnnDB) AddClass(projectID int64, class string) ([]string, error) {
	class = strings.TrimSpace(class)
	if class == "" {
		return nil, errors.New("Class name may not be empty")
	}
	proj, err := a.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	classes := proj.ClassList()
	if slices.Contains(classes, class) {
		return classes, nil
	}
	classes = append(classes, class)
	return classes, a.saveClasses(proj, classes)
}

// RemoveClass removes a class from the project's class set and returns the
// new set. The last class can not be removed.
func (a *AnnDB) RemoveClass(projectID int64, class string) ([]string, error) {
	proj, err := a.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	classes := proj.ClassList()
	if !slices.Contains(classes, class) {
		return classes, nil
	}
	if len(classes) <= 1 {
		return nil, ErrLastClass
	}
	classes = gen.DeleteFirst(classes, class)
	return classes, a.saveClasses(proj, classes)
}

func (a *AnnDB) saveClasses(proj *Project, classes []string) error {
	proj.Classes = dbh.MakeJSONField(classes)
	proj.UpdatedAt = dbh.MakeIntTime(time.Now())
	return a.DB.Save(proj).Error
}
