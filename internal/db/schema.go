package db

// Sync run log; the latest date is the updated_after cut-off for the next run
const createLogsTable = `
CREATE TABLE IF NOT EXISTS logs (
    date DATETIME,
    count INTEGER
);

CREATE INDEX IF NOT EXISTS idx_logs_date ON logs(date);
`

const createReportsTable = `
CREATE TABLE IF NOT EXISTS reports (
    serial VARCHAR(255) PRIMARY KEY,
    type VARCHAR(255),
    tlp_level VARCHAR(255),
    updated_at DATETIME,
    release_date DATETIME,
    threat_level INTEGER,
    ioc_count INTEGER,
    title TEXT,
    executive_summary TEXT,
    tags TEXT
);
`

const createIndicatorsTable = `
CREATE TABLE IF NOT EXISTS indicators (
    id INTEGER PRIMARY KEY,
    value VARCHAR(255),
    indicator_type VARCHAR(255),
    comment VARCHAR(255),
    first_seen DATETIME,
    last_seen DATETIME,
    updated_at DATETIME,
    confidence VARCHAR(255),
    kill_chain VARCHAR(255),
    activity_groups VARCHAR(255),
    attack_techniques VARCHAR(255),
    pre_attack_techniques VARCHAR(255)
);

CREATE INDEX IF NOT EXISTS idx_indicators_type ON indicators(indicator_type);
`

const insertIndicator = `
INSERT OR REPLACE INTO indicators (
    id, value, indicator_type, comment, first_seen, last_seen, updated_at,
    confidence, kill_chain, activity_groups, attack_techniques, pre_attack_techniques
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertReport = `
INSERT OR REPLACE INTO reports (
    serial, type, tlp_level, updated_at, release_date, threat_level,
    ioc_count, title, executive_summary, tags
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertLog = `
INSERT INTO logs (date, count) VALUES (?, ?)
`

const selectLastRun = `
SELECT date FROM logs ORDER BY date DESC LIMIT 1
`

const deleteIndicators = `
DELETE FROM indicators
`

const selectIndicatorCount = `
SELECT COUNT(*) FROM indicators
`

const selectReportCount = `
SELECT COUNT(*) FROM reports
`

const selectIndicator = `
SELECT id, value, indicator_type, COALESCE(comment, ''), first_seen, last_seen, updated_at,
       confidence, kill_chain, activity_groups, attack_techniques, pre_attack_techniques
FROM indicators WHERE id = ?
`

const selectReport = `
SELECT serial, type, tlp_level, updated_at, release_date, threat_level,
       ioc_count, title, executive_summary, tags
FROM reports WHERE serial = ?
`

const selectReports = `
SELECT serial, type, tlp_level, updated_at, release_date, threat_level,
       ioc_count, title, executive_summary, tags
FROM reports ORDER BY release_date DESC, serial
`

const selectIndicatorTypeCounts = `
SELECT COALESCE(indicator_type, ''), COUNT(*) AS total
FROM indicators
GROUP BY indicator_type
ORDER BY total DESC, indicator_type
`

const selectRunLogs = `
SELECT date, count FROM logs ORDER BY date DESC LIMIT ?
`
