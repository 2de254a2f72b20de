package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flow_checkpoints (
				checkpoint_key TEXT PRIMARY KEY,
				job_key TEXT NOT NULL,
				item_index INTEGER NOT NULL DEFAULT 0,
				pipe_index INTEGER NOT NULL DEFAULT 0,
				state TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_flow_checkpoints_job_key ON flow_checkpoints(job_key);

			CREATE TABLE processed_chunks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_key TEXT NOT NULL,
				hash TEXT NOT NULL,
				processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (job_key, hash)
			);
		`,
	}
}
