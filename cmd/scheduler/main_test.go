package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDataset = `
categories:
  - id: kitchen
    name: Кухня
    activity_type: volunteer
    time_coefficient: 1.5
    additional_time: 10m
activities:
  - id: dishes
    name: Мытьё посуды
    category: kitchen
    need_people: 2
persons:
  - id: anna
    first_name: Анна
    last_name: Петрова
  - id: boris
    first_name: Борис
    last_name: Иванов
    free_time_limit: 2h
  - id: vera
    first_name: Вера
    last_name: Смирнова
    excluded_categories: [kitchen]
events:
  - id: fest
    title: Летний фестиваль
    start_date: 2024-07-12
    end_date: 2024-07-14
bookings:
  - id: b1
    event: fest
    activity: dishes
    start: 2024-07-12 10:00
    end: 2024-07-12 11:30
    persons: [anna]
  - id: b2
    event: fest
    activity: dishes
    start: 2024-07-12 12:00
    end: 2024-07-12 13:00
`

type cliHarness struct {
	t   *testing.T
	dsn string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	for _, key := range []string{
		"SCHEDULER_CONFIG_FILE", "SCHEDULER_SQLITE_DSN", "SCHEDULER_LOG_LEVEL", "SCHEDULER_LOG_FORMAT",
		"SCHEDULER_ENFORCE_ATTENDANCE", "SCHEDULER_METRICS_TEXTFILE",
	} {
		t.Setenv(key, "")
	}
	return &cliHarness{t: t, dsn: filepath.Join(t.TempDir(), "scheduler.db")}
}

func (h *cliHarness) run(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	argv := append([]string{"scheduler", "--env-file", "", "--dsn", h.dsn}, args...)
	err := newApp(&stdout, &stderr).RunContext(context.Background(), argv)
	return stdout.String(), stderr.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	stdout, stderr, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("scheduler %s failed: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

func (h *cliHarness) importDataset() {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), "festival.yaml")
	if err := os.WriteFile(path, []byte(testDataset), 0o644); err != nil {
		h.t.Fatalf("failed to write dataset: %v", err)
	}
	out := h.mustRun("import", path)
	if !strings.Contains(out, "imported 1 categories, 1 activities, 3 persons, 1 events, 2 bookings") {
		h.t.Fatalf("unexpected import output: %q", out)
	}
}

func TestMigrateReportsSchemaVersion(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("migrate", "--status")
	if !strings.Contains(out, "pending  001") {
		t.Fatalf("expected pending migrations before migrating, got %q", out)
	}

	out = h.mustRun("migrate")
	if !strings.Contains(out, "current version: 002") {
		t.Fatalf("expected schema version 002, got %q", out)
	}
	if strings.Contains(out, "pending") {
		t.Fatalf("expected no pending migrations, got %q", out)
	}
}

func TestGridCommand(t *testing.T) {
	h := newHarness(t)
	h.importDataset()

	out := h.mustRun("grid", "--type", "volunteer")
	for _, want := range []string{
		"Волонтерское расписание",
		"12.07 10:00 - 11:30 (1 ч. 30 мин. - 2 ч. 25 мин.) Мытьё посуды Need 1 more (1/2)",
		"Анна Петрова",
		"Assigned",
		"Unavailable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("grid output missing %q:\n%s", want, out)
		}
	}

	if _, _, err := h.run("grid", "--type", "party"); err == nil {
		t.Fatal("expected an unknown activity type to fail")
	}
}

func TestAssignCommandRejectsAll(t *testing.T) {
	h := newHarness(t)
	h.importDataset()

	out, _, err := h.run("assign", "--booking", "b2", "--person", "boris", "--person", "vera")
	if err == nil {
		t.Fatal("expected the assignment to be rejected")
	}
	if !strings.Contains(out, "rejected vera (excluded_category_check)") {
		t.Fatalf("expected vera's rejection to be printed, got %q", out)
	}

	classified := h.mustRun("classify", "--booking", "b2", "--person", "boris")
	if !strings.Contains(classified, "Available (available)") {
		t.Fatalf("boris must stay unassigned after a rejected commit, got %q", classified)
	}

	out = h.mustRun("assign", "--booking", "b2", "--person", "boris")
	if !strings.Contains(out, "booking b2: boris") {
		t.Fatalf("unexpected assign output: %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	h := newHarness(t)
	h.importDataset()

	out := h.mustRun("validate", "--booking", "b2", "--person", "boris")
	if !strings.Contains(out, "ok       boris") {
		t.Fatalf("expected boris to pass, got %q", out)
	}

	out, _, err := h.run("validate", "--event", "fest", "--activity", "dishes",
		"--start", "2024-07-12 11:00", "--end", "2024-07-12 12:00", "--person", "anna")
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected errRejected, got %v", err)
	}
	if !strings.Contains(out, "rejected anna (overlap_check)") {
		t.Fatalf("expected an overlap rejection, got %q", out)
	}
}

func TestWeightedAndScheduleCommands(t *testing.T) {
	h := newHarness(t)
	h.importDataset()

	out := h.mustRun("weighted", "--booking", "b1")
	if !strings.Contains(out, "2 ч. 25 мин.") {
		t.Fatalf("unexpected weighted duration: %q", out)
	}

	out = h.mustRun("schedule", "--person", "anna", "--tz", "Europe/Moscow")
	if !strings.Contains(out, "12.07 13:00 - 14:30  Мытьё посуды") {
		t.Fatalf("expected the booking in Moscow time, got %q", out)
	}
	if !strings.Contains(out, "total: 2 ч. 25 мин.") {
		t.Fatalf("expected the weighted total, got %q", out)
	}
}

func TestBookAndUnassignCommands(t *testing.T) {
	h := newHarness(t)
	h.importDataset()

	out := h.mustRun("book", "--event", "fest", "--activity", "dishes",
		"--start", "2024-07-13 09:00", "--end", "2024-07-13 10:00", "--person", "anna")
	if !strings.HasPrefix(out, "created booking ") {
		t.Fatalf("unexpected book output: %q", out)
	}

	out = h.mustRun("unassign", "--booking", "b1", "--person", "anna")
	if strings.TrimSpace(out) != "booking b1:" {
		t.Fatalf("unexpected unassign output: %q", out)
	}

	if _, _, err := h.run("unassign", "--booking", "b1", "--person", "anna"); err == nil {
		t.Fatal("expected unassigning a missing person to fail")
	}
}
