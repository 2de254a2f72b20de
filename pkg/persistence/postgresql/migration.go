package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create flow_checkpoints table
			CREATE TABLE flow_checkpoints (
				checkpoint_key VARCHAR(512) PRIMARY KEY,
				job_key VARCHAR(255) NOT NULL,
				item_index INTEGER NOT NULL DEFAULT 0,
				pipe_index INTEGER NOT NULL DEFAULT 0,
				state VARCHAR(255) NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_flow_checkpoints_job_key ON flow_checkpoints(job_key);

			-- Create processed_chunks table
			CREATE TABLE processed_chunks (
				id BIGSERIAL PRIMARY KEY,
				job_key VARCHAR(255) NOT NULL,
				hash VARCHAR(64) NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (job_key, hash)
			);
		`,
	}
}
