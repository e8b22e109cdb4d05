package anndb

import (
	"os"
	"testing"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/pkg/voc"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T) *AnnDB {
	os.Remove("test_anndb.sqlite")
	db, err := NewAnnDB(logs.NewTestingLog(t), "test_anndb.sqlite")
	require.NoError(t, err)
	return db
}

func createTestVideo(t *testing.T, db *AnnDB, projectID int64) *Video {
	video := &Video{
		ProjectID:  projectID,
		Filename:   "cups.mp4",
		Size:       1024,
		Width:      640,
		Height:     480,
		FPS:        25,
		Duration:   10,
		FrameCount: 250,
		CreatedAt:  dbh.MakeIntTime(time.Now()),
	}
	require.NoError(t, db.DB.Create(video).Error)
	return video
}

func TestEmailValidation(t *testing.T) {
	valid := []string{
		"user@example.com",
		"user.name+tag@sub.domain.co.uk",
		"user_name@example.co",
	}
	invalid := []string{
		"plainaddress",
		"user@domain",
		"user@domain.c",
		"user@sub_domain.com",
		"user name@example.com",
	}
	for _, email := range valid {
		require.True(t, IsValidEmail(email), "expected %v to be valid", email)
	}
	for _, email := range invalid {
		require.False(t, IsValidEmail(email), "expected %v to be invalid", email)
	}
}

func TestUsers(t *testing.T) {
	db := createTestDB(t)

	u1, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	require.NotZero(t, u1.ID)

	// Same email gives the same user
	again, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u1.ID, again.ID)

	// Email is normalized to lower case
	upper, err := db.GetOrCreateUser("ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, u1.ID, upper.ID)

	_, err = db.GetOrCreateUser("not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = db.GetOrCreateUser("bob@example.com")
	require.NoError(t, err)
	users, err := db.AllUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice@example.com", users[0].Email)
	require.Equal(t, "bob@example.com", users[1].Email)
}

func TestProjects(t *testing.T) {
	db := createTestDB(t)
	user, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)

	p1, err := db.CreateProject(user.ID, "cups")
	require.NoError(t, err)
	require.Equal(t, DefaultClasses, p1.ClassList())

	_, err = db.CreateProject(user.ID, "cups")
	require.ErrorIs(t, err, ErrDuplicateProjectName)

	// The same name under a different user is fine
	other, err := db.GetOrCreateUser("bob@example.com")
	require.NoError(t, err)
	_, err = db.CreateProject(other.ID, "cups")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	p2, err := db.CreateProject(user.ID, "plates")
	require.NoError(t, err)

	// Most recently touched project comes first
	projects, err := db.UserProjects(user.ID)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, p2.ID, projects[0].ID)

	time.Sleep(2 * time.Millisecond)
	_, err = db.AddClass(p1.ID, "saucer")
	require.NoError(t, err)
	projects, err = db.UserProjects(user.ID)
	require.NoError(t, err)
	require.Equal(t, p1.ID, projects[0].ID)
}

func TestClasses(t *testing.T) {
	db := createTestDB(t)
	user, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	proj, err := db.CreateProject(user.ID, "cups")
	require.NoError(t, err)

	classes, err := db.AddClass(proj.ID, "saucer")
	require.NoError(t, err)
	require.Equal(t, []string{"good-cup", "bad-cup", "no-cup", "saucer"}, classes)

	// Adding an existing class is a no-op
	classes, err = db.AddClass(proj.ID, "saucer")
	require.NoError(t, err)
	require.Len(t, classes, 4)

	classes, err = db.RemoveClass(proj.ID, "bad-cup")
	require.NoError(t, err)
	require.Equal(t, []string{"good-cup", "no-cup", "saucer"}, classes)

	// Removing an absent class is a no-op
	classes, err = db.RemoveClass(proj.ID, "gone")
	require.NoError(t, err)
	require.Len(t, classes, 3)

	_, err = db.RemoveClass(proj.ID, "good-cup")
	require.NoError(t, err)
	_, err = db.RemoveClass(proj.ID, "no-cup")
	require.NoError(t, err)
	_, err = db.RemoveClass(proj.ID, "saucer")
	require.ErrorIs(t, err, ErrLastClass)
}

func TestAnnotations(t *testing.T) {
	db := createTestDB(t)
	user, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	proj, err := db.CreateProject(user.ID, "cups")
	require.NoError(t, err)
	video := createTestVideo(t, db, proj.ID)

	// A frame that was never annotated reads as nil
	objects, err := db.GetFrame(video.ID, 0)
	require.NoError(t, err)
	require.Nil(t, objects)

	boxes := []voc.Annotation{
		{Class: "good-cup", Box: [4]int{10, 20, 110, 220}},
		{Class: "bad-cup", Box: [4]int{5, 5, 50, 50}},
	}
	require.NoError(t, db.SetFrame(video.ID, 3, boxes))

	objects, err = db.GetFrame(video.ID, 3)
	require.NoError(t, err)
	require.Equal(t, boxes, objects)

	// Replace the frame's set
	require.NoError(t, db.SetFrame(video.ID, 3, boxes[:1]))
	objects, err = db.GetFrame(video.ID, 3)
	require.NoError(t, err)
	require.Equal(t, boxes[:1], objects)

	// An explicitly empty set is stored, and reads back empty, not nil
	require.NoError(t, db.SetFrame(video.ID, 7, []voc.Annotation{}))
	objects, err = db.GetFrame(video.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, objects)
	require.Len(t, objects, 0)

	frames, err := db.VideoAnnotations(video.ID)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Len(t, frames[3], 1)
	require.Len(t, frames[7], 0)

	stats, err := db.GetVideoStats(video.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalObjects)
	require.Equal(t, 1, stats.AnnotatedFrames)
	require.Equal(t, 249, stats.RemainingFrames)
}

func TestAnnotationsTouchProject(t *testing.T) {
	db := createTestDB(t)
	user, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	proj, err := db.CreateProject(user.ID, "cups")
	require.NoError(t, err)
	video := createTestVideo(t, db, proj.ID)

	before, err := db.GetProject(proj.ID)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, db.SetFrame(video.ID, 0, []voc.Annotation{{Class: "good-cup", Box: [4]int{1, 2, 3, 4}}}))

	after, err := db.GetProject(proj.ID)
	require.NoError(t, err)
	require.True(t, after.UpdatedAt.Get().After(before.UpdatedAt.Get()))
}

func TestDeleteVideo(t *testing.T) {
	db := createTestDB(t)
	user, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	proj, err := db.CreateProject(user.ID, "cups")
	require.NoError(t, err)
	video := createTestVideo(t, db, proj.ID)
	require.NoError(t, db.SetFrame(video.ID, 1, []voc.Annotation{{Class: "good-cup", Box: [4]int{1, 2, 3, 4}}}))

	require.NoError(t, db.DeleteVideo(video.ID))

	_, err = db.GetVideo(video.ID)
	require.Error(t, err)
	frames, err := db.VideoAnnotations(video.ID)
	require.NoError(t, err)
	require.Len(t, frames, 0)
}

func TestTrainingRuns(t *testing.T) {
	db := createTestDB(t)
	user, err := db.GetOrCreateUser("alice@example.com")
	require.NoError(t, err)
	proj, err := db.CreateProject(user.ID, "cups")
	require.NoError(t, err)

	run, err := db.CreateTrainingRun(proj.ID, 0)
	require.NoError(t, err)
	require.Equal(t, TrainingRunStateQueued, run.State)

	require.NoError(t, db.MarkTrainingRunStarted(run.ID))
	require.NoError(t, db.AppendTrainingMetrics(run.ID, EpochMetrics{Epoch: 1, Loss: 0.7, MAP: 0.31}))
	require.NoError(t, db.AppendTrainingMetrics(run.ID, EpochMetrics{Epoch: 2, Loss: 0.5, MAP: 0.44}))

	mid, err := db.GetTrainingRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, TrainingRunStateRunning, mid.State)
	require.Equal(t, 2, mid.Epochs)
	require.Len(t, mid.Metrics.Data, 2)
	require.Equal(t, 0.44, mid.Metrics.Data[1].MAP)

	require.NoError(t, db.MarkTrainingRunFinished(run.ID, "models/1/model.onnx", nil))
	done, err := db.GetTrainingRun(run.ID)
	require.NoError(t, err)
	require.Equal(t, TrainingRunStateFinished, done.State)
	require.Equal(t, "models/1/model.onnx", done.ModelFile)
	require.False(t, done.FinishedAt.IsZero())

	// A failed run records its error
	run2, err := db.CreateTrainingRun(proj.ID, 0)
	require.NoError(t, err)
	require.NoError(t, db.MarkTrainingRunFinished(run2.ID, "", os.ErrDeadlineExceeded))
	failed, err := db.GetTrainingRun(run2.ID)
	require.NoError(t, err)
	require.Equal(t, TrainingRunStateFailed, failed.State)
	require.NotEmpty(t, failed.Error)
}

func TestIsVideoFilename(t *testing.T) {
	require.True(t, IsVideoFilename("cups.mp4"))
	require.True(t, IsVideoFilename("CUPS.MP4"))
	require.True(t, IsVideoFilename("a.mov"))
	require.True(t, IsVideoFilename("a.3gp"))
	require.False(t, IsVideoFilename("cups.txt"))
	require.False(t, IsVideoFilename("cups"))
	require.False(t, IsVideoFilename("cups.mp4.exe"))
}
