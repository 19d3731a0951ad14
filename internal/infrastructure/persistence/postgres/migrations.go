package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create progress tables
-- Version: 001

-- Remote progress snapshots, one row per (user, workstation).
-- updated_at_ms is the logical last-writer-wins timestamp.
CREATE TABLE IF NOT EXISTS progress_snapshots (
    user_id UUID NOT NULL,
    workstation_id VARCHAR(50) NOT NULL,
    progress_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
    completed_tasks INTEGER NOT NULL DEFAULT 0,
    total_tasks INTEGER NOT NULL DEFAULT 0,
    last_task_id VARCHAR(100),
    last_stage_id VARCHAR(100),
    saved_data JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at_ms BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, workstation_id),

    CONSTRAINT valid_progress CHECK (progress_percent >= 0 AND progress_percent <= 100),
    CONSTRAINT valid_tasks CHECK (completed_tasks >= 0 AND total_tasks >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_user ON progress_snapshots(user_id);
CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress_snapshots(updated_at_ms DESC);

-- Daily activity streaks, one row per user.
CREATE TABLE IF NOT EXISTS streaks (
    user_id UUID PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE,
    streak_start_date DATE,

    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND best_streak >= current_streak)
);
`

const migration001Down = `
DROP TABLE IF EXISTS streaks;
DROP TABLE IF EXISTS progress_snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create leaderboard and submissions tables
-- Version: 002

-- One score per (competition, user); the unique constraint enforces the
-- single-submission rule at the storage level.
CREATE TABLE IF NOT EXISTS leaderboard_entries (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    competition_id VARCHAR(100) NOT NULL,
    user_id UUID NOT NULL,
    user_name VARCHAR(100) NOT NULL,
    score INTEGER NOT NULL,
    time_spent_seconds INTEGER NOT NULL,
    operation_path JSONB NOT NULL DEFAULT '[]'::jsonb,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_competition_user UNIQUE (competition_id, user_id),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= 100),
    CONSTRAINT valid_time CHECK (time_spent_seconds >= 0)
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_competition ON leaderboard_entries(competition_id, score DESC, time_spent_seconds ASC);

-- Scored submissions with their sub-scores, kept for audit and review.
CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    session_id UUID NOT NULL,
    task_id VARCHAR(100) NOT NULL,
    workstation_id VARCHAR(50) NOT NULL,
    judgment JSONB NOT NULL,
    accuracy_score DOUBLE PRECISION NOT NULL,
    budget_score DOUBLE PRECISION NOT NULL,
    path_score DOUBLE PRECISION NOT NULL,
    time_score DOUBLE PRECISION NOT NULL,
    total_score INTEGER NOT NULL,
    grade VARCHAR(20) NOT NULL,
    scored_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total CHECK (total_score >= 0 AND total_score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id, scored_at DESC);
CREATE INDEX IF NOT EXISTS idx_submissions_task ON submissions(task_id);
`

const migration002Down = `
DROP TABLE IF EXISTS submissions;
DROP TABLE IF EXISTS leaderboard_entries;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create achievement, career, and certificate tables
-- Version: 003

-- Achievement grants; the unique constraint makes granting idempotent.
CREATE TABLE IF NOT EXISTS achievement_grants (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    achievement_id VARCHAR(100) NOT NULL,
    granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_user_achievement UNIQUE (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_grants_user ON achievement_grants(user_id, granted_at DESC);

-- Career profiles: accumulated XP and current level per user.
CREATE TABLE IF NOT EXISTS career_profiles (
    user_id UUID PRIMARY KEY,
    total_xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    unlocked JSONB NOT NULL DEFAULT '[]'::jsonb,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);

-- Certificates issued on workstation completion, one per (user, workstation).
CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    workstation_id VARCHAR(50) NOT NULL,
    issued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_user_workstation_cert UNIQUE (user_id, workstation_id)
);

CREATE INDEX IF NOT EXISTS idx_certificates_user ON certificates(user_id);
`

const migration003Down = `
DROP TABLE IF EXISTS certificates;
DROP TABLE IF EXISTS career_profiles;
DROP TABLE IF EXISTS achievement_grants;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE BEHAVIOR EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create behavior event history
-- Version: 004

-- Append-only behavior events, written in batches from the session buffer.
CREATE TABLE IF NOT EXISTS behavior_events (
    id UUID PRIMARY KEY,
    session_id UUID NOT NULL,
    user_id UUID NOT NULL,
    workstation_id VARCHAR(50) NOT NULL,
    kind VARCHAR(30) NOT NULL,
    stage_id VARCHAR(100),
    detail JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_kind CHECK (kind IN (
        'page_view', 'field_modify', 'hint_view', 'error',
        'stage_enter', 'stage_complete', 'evidence_purchase', 'submit'
    ))
);

CREATE INDEX IF NOT EXISTS idx_behavior_session ON behavior_events(session_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_behavior_user ON behavior_events(user_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_behavior_errors ON behavior_events(workstation_id, stage_id) WHERE kind = 'error';
`

const migration004Down = `
DROP TABLE IF EXISTS behavior_events;
`
