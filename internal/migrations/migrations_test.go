package migrations

import (
	"strings"
	"testing"
)

func TestStatementsAreIdempotent(t *testing.T) {
	for i, stmt := range Statements {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Fatalf("statement %d must be safe to re-run: %s", i+1, stmt)
		}
	}
}

func TestAuditLogCreatedAfterRequests(t *testing.T) {
	requests, audit := -1, -1
	for i, stmt := range Statements {
		switch {
		case strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS signing_requests"):
			requests = i
		case strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS signing_audit_log"):
			audit = i
		}
	}
	if requests < 0 || audit < 0 || audit < requests {
		t.Fatalf("signing_audit_log references signing_requests and must come later (%d, %d)", requests, audit)
	}
}
