package research_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/research_backend/config"
	"github.com/mmdatafocus/research_backend/models"
	"github.com/mmdatafocus/research_backend/research"
)

type fakeSource struct {
	records []research.SourceRecord
	err     error
}

func (f *fakeSource) ReadCompanyList(ctx context.Context, readRange string) ([]research.SourceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeExtractor struct {
	// docs maps corporate number to raw JSON. Missing entries yield
	// (nil, nil); entries in failures yield an error.
	docs     map[string]string
	failures map[string]error
}

func (f *fakeExtractor) ExtractCompany(ctx context.Context, rec research.SourceRecord) (*research.CompanyDocument, error) {
	if err, ok := f.failures[rec.CorporateNumber]; ok {
		return nil, err
	}
	raw, ok := f.docs[rec.CorporateNumber]
	if !ok {
		return nil, nil
	}
	doc, err := research.ParseCompanyDocument([]byte(raw))
	if err != nil {
		return nil, err
	}
	doc.SetCorporateNumber(rec.CorporateNumber)
	return doc, nil
}

type fakeSink struct {
	mu       sync.Mutex
	mirrored []string
	err      error
}

func (f *fakeSink) MirrorCompany(ctx context.Context, doc *research.CompanyDocument, roster []research.RosterEntry, offices []research.OfficeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.mirrored = append(f.mirrored, doc.CorporateNumber())
	return nil
}

func (f *fakeSink) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.mirrored))
	copy(out, f.mirrored)
	return out
}

func companyJSON(name string) string {
	return fmt.Sprintf(`{
		"基本法人情報（識別・概要）": {"会社名": %q, "住所": "東京都千代田区1-1"},
		"経営・財務情報": {"売上高": "10億円"},
		"役員名簿": {"役職名1": "代表取締役", "役員名1": "山田太郎", "ふりがな1": "やまだたろう"},
		"拠点・事業所一覧": {"事業所名1": "本社", "住所1": "東京都千代田区1-1"}
	}`, name)
}

func waitForTerminalRun(t *testing.T, ctx context.Context, runId int) *models.ResearchRun {
	t.Helper()
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		run, err := models.GetResearchRun(ctx, runId)
		if err != nil {
			t.Fatalf("GetResearchRun(%d): %v", runId, err)
		}
		if run.IsTerminal() {
			return run
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("run %d did not reach a terminal status", runId)
	return nil
}

func TestResearchPipelineIntegration(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "research_test")
	// Keep run events off; there is no Pub/Sub in this harness.
	t.Setenv("RESEARCH_EVENTS_TOPIC", "")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	models.MigrateTable()

	logger := config.GetLogger()

	t.Run("completed run persists companies and mirrors them", func(t *testing.T) {
		source := &fakeSource{records: []research.SourceRecord{
			{CorporateNumber: "1000000000001", Name: "会社A"},
			{CorporateNumber: "1000000000002", Name: "会社B"},
			{CorporateNumber: "1000000000003", Name: "会社C"},
		}}
		extractor := &fakeExtractor{docs: map[string]string{
			"1000000000001": companyJSON("会社A"),
			"1000000000002": companyJSON("会社B"),
			"1000000000003": companyJSON("会社C"),
		}}
		sink := &fakeSink{}

		runner := research.NewRunner(db, logger, source, extractor, sink)
		run, err := runner.StartRun(ctx, research.RunOptions{SourceRange: "会社リスト!A3:D", SyncToSheet: true})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		if run.Status != models.RunStatusQueued {
			t.Fatalf("fresh run status = %q", run.Status)
		}

		final := waitForTerminalRun(t, ctx, run.ID)
		if final.Status != models.RunStatusCompleted {
			t.Fatalf("run status = %q, error log = %q", final.Status, final.ErrorLog)
		}
		if final.TotalCount != 3 || final.ProcessedCount != 3 {
			t.Fatalf("counts = %d/%d", final.ProcessedCount, final.TotalCount)
		}
		if final.StartedAt == nil || final.CompletedAt == nil {
			t.Fatalf("timestamps missing: %+v", final)
		}

		company, err := models.GetCompanyByNumber(ctx, "1000000000001")
		if err != nil {
			t.Fatalf("GetCompanyByNumber: %v", err)
		}
		if company.CompanyName != "会社A" || company.Revenue != "10億円" {
			t.Fatalf("company not reconciled: %+v", company)
		}
		if len(company.Executives) != 1 || company.Executives[0].Name != "山田太郎" {
			t.Fatalf("executives not persisted: %+v", company.Executives)
		}
		if len(company.Offices) != 1 || company.Offices[0].Name != "本社" {
			t.Fatalf("offices not persisted: %+v", company.Offices)
		}

		if mirrored := sink.seen(); len(mirrored) != 3 {
			t.Fatalf("expected 3 mirrored companies, got %v", mirrored)
		}
	})

	t.Run("unavailable source fails the run", func(t *testing.T) {
		source := &fakeSource{err: fmt.Errorf("%w: 503", research.ErrSourceUnavailable)}
		runner := research.NewRunner(db, logger, source, &fakeExtractor{}, &fakeSink{})

		run, err := runner.StartRun(ctx, research.RunOptions{SourceRange: "会社リスト!A3:D"})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		final := waitForTerminalRun(t, ctx, run.ID)
		if final.Status != models.RunStatusFailed {
			t.Fatalf("run status = %q", final.Status)
		}
		if !strings.Contains(final.ErrorLog, "unavailable") {
			t.Fatalf("error log: %q", final.ErrorLog)
		}
	})

	t.Run("record failures are isolated", func(t *testing.T) {
		source := &fakeSource{records: []research.SourceRecord{
			{CorporateNumber: "2000000000001"},
			{CorporateNumber: "2000000000002"},
			{CorporateNumber: "2000000000003"},
		}}
		extractor := &fakeExtractor{
			docs: map[string]string{
				"2000000000001": companyJSON("会社D"),
				"2000000000003": companyJSON("会社E"),
			},
			failures: map[string]error{
				"2000000000002": errors.New("model timeout"),
			},
		}
		sink := &fakeSink{}
		runner := research.NewRunner(db, logger, source, extractor, sink)

		run, err := runner.StartRun(ctx, research.RunOptions{SourceRange: "r", SyncToSheet: true})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		final := waitForTerminalRun(t, ctx, run.ID)
		if final.Status != models.RunStatusCompleted {
			t.Fatalf("run status = %q", final.Status)
		}
		if final.TotalCount != 3 || final.ProcessedCount != 2 {
			t.Fatalf("counts = %d/%d", final.ProcessedCount, final.TotalCount)
		}
		if !strings.Contains(final.ErrorLog, "2000000000002") {
			t.Fatalf("error log should name the failed record: %q", final.ErrorLog)
		}
		if mirrored := sink.seen(); len(mirrored) != 2 {
			t.Fatalf("only reconciled companies should be mirrored, got %v", mirrored)
		}
	})

	t.Run("max companies caps the record list", func(t *testing.T) {
		source := &fakeSource{records: []research.SourceRecord{
			{CorporateNumber: "3000000000001"},
			{CorporateNumber: "3000000000002"},
			{CorporateNumber: "3000000000003"},
		}}
		extractor := &fakeExtractor{docs: map[string]string{
			"3000000000001": companyJSON("会社F"),
			"3000000000002": companyJSON("会社G"),
		}}
		runner := research.NewRunner(db, logger, source, extractor, &fakeSink{})

		run, err := runner.StartRun(ctx, research.RunOptions{SourceRange: "r", MaxCompanies: 2})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		final := waitForTerminalRun(t, ctx, run.ID)
		if final.TotalCount != 2 || final.ProcessedCount != 2 {
			t.Fatalf("counts = %d/%d", final.ProcessedCount, final.TotalCount)
		}
	})

	t.Run("mirror failure does not affect run status", func(t *testing.T) {
		source := &fakeSource{records: []research.SourceRecord{
			{CorporateNumber: "4000000000001"},
		}}
		extractor := &fakeExtractor{docs: map[string]string{
			"4000000000001": companyJSON("会社H"),
		}}
		sink := &fakeSink{err: errors.New("sheet quota exceeded")}
		runner := research.NewRunner(db, logger, source, extractor, sink)

		run, err := runner.StartRun(ctx, research.RunOptions{SourceRange: "r", SyncToSheet: true})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		final := waitForTerminalRun(t, ctx, run.ID)
		if final.Status != models.RunStatusCompleted || final.ProcessedCount != 1 {
			t.Fatalf("mirror failure leaked into run: %+v", final)
		}
	})

	t.Run("reconcile is idempotent and keeps children dense", func(t *testing.T) {
		raw := `{
			"基本法人情報（識別・概要）": {"企業法人番号": "5000000000001", "会社名": "再調査株式会社"},
			"役員名簿": {
				"役職名1": "会長", "役員名1": "一人目",
				"役職名2": "社長", "役員名2": "二人目",
				"役職名3": "専務", "役員名3": "三人目"
			}
		}`
		doc, err := research.ParseCompanyDocument([]byte(raw))
		if err != nil {
			t.Fatalf("ParseCompanyDocument: %v", err)
		}

		if _, _, _, err := research.ReconcileDocument(ctx, db, doc); err != nil {
			t.Fatalf("first reconcile: %v", err)
		}
		if _, _, _, err := research.ReconcileDocument(ctx, db, doc); err != nil {
			t.Fatalf("second reconcile: %v", err)
		}

		company, err := models.GetCompanyByNumber(ctx, "5000000000001")
		if err != nil {
			t.Fatalf("GetCompanyByNumber: %v", err)
		}
		if len(company.Executives) != 3 {
			t.Fatalf("re-run duplicated executives: %d", len(company.Executives))
		}
		for i, e := range company.Executives {
			if e.Order != i+1 {
				t.Fatalf("order not dense: %+v", company.Executives)
			}
		}

		// Identical re-run must not append history rows.
		histories, err := models.GetResearchHistories(ctx, "5000000000001", 0)
		if err != nil {
			t.Fatalf("GetResearchHistories: %v", err)
		}
		if len(histories) != 0 {
			t.Fatalf("identical re-run wrote history: %+v", histories)
		}

		// Shrink the roster to one entry; stale rows must not survive.
		shrunk, err := research.ParseCompanyDocument([]byte(`{
			"基本法人情報（識別・概要）": {"企業法人番号": "5000000000001", "会社名": "再調査株式会社"},
			"役員名簿": {"役職名1": "社長", "役員名1": "二人目"}
		}`))
		if err != nil {
			t.Fatalf("ParseCompanyDocument: %v", err)
		}
		if _, _, _, err := research.ReconcileDocument(ctx, db, shrunk); err != nil {
			t.Fatalf("shrink reconcile: %v", err)
		}
		company, err = models.GetCompanyByNumber(ctx, "5000000000001")
		if err != nil {
			t.Fatalf("GetCompanyByNumber: %v", err)
		}
		if len(company.Executives) != 1 || company.Executives[0].Name != "二人目" || company.Executives[0].Order != 1 {
			t.Fatalf("shrunk roster wrong: %+v", company.Executives)
		}
	})

	t.Run("history records only non-empty corrections", func(t *testing.T) {
		first, err := research.ParseCompanyDocument([]byte(`{
			"基本法人情報（識別・概要）": {"企業法人番号": "6000000000001", "会社名": "変更前株式会社", "住所": ""}
		}`))
		if err != nil {
			t.Fatalf("ParseCompanyDocument: %v", err)
		}
		if _, _, _, err := research.ReconcileDocument(ctx, db, first); err != nil {
			t.Fatalf("first reconcile: %v", err)
		}

		second, err := research.ParseCompanyDocument([]byte(`{
			"基本法人情報（識別・概要）": {"企業法人番号": "6000000000001", "会社名": "変更後株式会社", "住所": "東京都"}
		}`))
		if err != nil {
			t.Fatalf("ParseCompanyDocument: %v", err)
		}
		if _, _, _, err := research.ReconcileDocument(ctx, db, second); err != nil {
			t.Fatalf("second reconcile: %v", err)
		}

		histories, err := models.GetResearchHistories(ctx, "6000000000001", 0)
		if err != nil {
			t.Fatalf("GetResearchHistories: %v", err)
		}
		// 会社名 changed between two non-empty values: logged. 住所 went from
		// empty to populated: not logged.
		if len(histories) != 1 {
			t.Fatalf("expected exactly one history row, got %+v", histories)
		}
		h := histories[0]
		if h.ChangedField != "company_name" || h.OldValue != "変更前株式会社" || h.NewValue != "変更後株式会社" {
			t.Fatalf("unexpected history row: %+v", h)
		}

		// The address itself was still updated.
		company, err := models.GetCompanyByNumber(ctx, "6000000000001")
		if err != nil {
			t.Fatalf("GetCompanyByNumber: %v", err)
		}
		if company.Address != "東京都" {
			t.Fatalf("address not updated: %q", company.Address)
		}
	})

	t.Run("missing corporate number is rejected", func(t *testing.T) {
		doc, err := research.ParseCompanyDocument([]byte(`{"基本法人情報（識別・概要）": {"会社名": "番号なし"}}`))
		if err != nil {
			t.Fatalf("ParseCompanyDocument: %v", err)
		}
		if _, _, _, err := research.ReconcileDocument(ctx, db, doc); !errors.Is(err, models.ErrMissingCorporateNumber) {
			t.Fatalf("expected ErrMissingCorporateNumber, got %v", err)
		}
	})
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("research-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=research_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
