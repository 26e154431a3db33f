package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      variant,
                      destination,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    variant,
    destination,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    variant,
    destination,
    config
FROM sessions
ORDER BY start_time`

	insertNavdataSQL = `
INSERT INTO navdata (session_id,
                     timestamp,
                     sequence,
                     state,
                     ctrl_state,
                     battery,
                     theta,
                     phi,
                     psi,
                     altitude,
                     vx,
                     vy,
                     vz,
                     sent)
VALUES `

	navdataValuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	navdataColumns           = 14

	selectSummarySQL = `
SELECT
    COUNT(*),
    COALESCE(SUM(sent), 0),
    MIN(timestamp),
    MAX(timestamp),
    COALESCE(MIN(altitude), 0),
    COALESCE(MAX(altitude), 0)
FROM navdata
WHERE
    session_id = ?`

	selectNavdataSQL = `
SELECT
    timestamp,
    sequence,
    state,
    ctrl_state,
    battery,
    theta,
    phi,
    psi,
    altitude,
    vx,
    vy,
    vz,
    sent
FROM navdata
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
    AND sequence BETWEEN ? AND ?
ORDER BY id
LIMIT ? OFFSET ?`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_navdata_session_timestamp ON navdata (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_navdata_session_sequence ON navdata (session_id, sequence);`
)

//go:embed schema.sql
var initSchemaSQL string
