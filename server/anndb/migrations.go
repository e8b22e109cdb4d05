package anndb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE user(
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			password TEXT,
			created_at INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_user_email ON user(email);

		CREATE TABLE session(
			key TEXT PRIMARY KEY,
			user_id INT NOT NULL,
			created_at INT NOT NULL,
			expires_at INT
		);
		CREATE INDEX idx_session_user_id ON session(user_id);

		CREATE TABLE project(
			id INTEGER PRIMARY KEY,
			user_id INT NOT NULL,
			name TEXT NOT NULL,
			classes TEXT,
			created_at INT NOT NULL,
			updated_at INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_project_user_id_name ON project(user_id, name);

		CREATE TABLE video(
			id INTEGER PRIMARY KEY,
			project_id INT NOT NULL,
			filename TEXT NOT NULL,
			size INT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			fps REAL NOT NULL,
			duration REAL NOT NULL,
			frame_count INT NOT NULL,
			created_at INT NOT NULL
		);
		CREATE INDEX idx_video_project_id ON video(project_id);

		CREATE TABLE annotation(
			id INTEGER PRIMARY KEY,
			video_id INT NOT NULL,
			frame INT NOT NULL,
			objects TEXT,
			modified_at INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_annotation_video_id_frame ON annotation(video_id, frame);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE training_run(
			id INTEGER PRIMARY KEY,
			project_id INT NOT NULL,
			video_id INT NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			error TEXT,
			epochs INT NOT NULL DEFAULT 0,
			metrics TEXT,
			model_file TEXT,
			created_at INT NOT NULL,
			started_at INT,
			finished_at INT
		);
		CREATE INDEX idx_training_run_project_id ON training_run(project_id);
	`))

	return migs
}
