package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/infra/ledger"
	"github.com/m-mizutani/catapult/pkg/usecase"
	"github.com/m-mizutani/catapult/pkg/utils/metrics"
)

// MockCredentialSource is a mock implementation of CredentialSource
type MockCredentialSource struct {
	credentialFunc func(ctx context.Context) (*model.RegistryCredential, error)
	calls          int
}

func (m *MockCredentialSource) Credential(ctx context.Context) (*model.RegistryCredential, error) {
	m.calls++
	if m.credentialFunc != nil {
		return m.credentialFunc(ctx)
	}
	return &model.RegistryCredential{
		Registry: "ghcr.io",
		Username: "oauth2accesstoken",
		Secret:   "test-token",
	}, nil
}

// MockBuilder is a mock implementation of ImageBuilder
type MockBuilder struct {
	buildFunc func(ctx context.Context, cred *model.RegistryCredential, req *model.ReleaseRequest) (*model.BuildResult, error)
	calls     []MockBuildCall
}

type MockBuildCall struct {
	Cred *model.RegistryCredential
	Req  *model.ReleaseRequest
}

func (m *MockBuilder) BuildAndPush(ctx context.Context, cred *model.RegistryCredential, req *model.ReleaseRequest) (*model.BuildResult, error) {
	m.calls = append(m.calls, MockBuildCall{Cred: cred, Req: req})
	if m.buildFunc != nil {
		return m.buildFunc(ctx, cred, req)
	}
	return &model.BuildResult{
		Image: model.ImageRef{
			Registry:   "ghcr.io",
			Repository: req.Repository,
			Tag:        req.CommitSHA,
		},
		Platforms: req.Platforms,
		Digest:    "sha256:0123456789abcdef",
	}, nil
}

// MockGitClient is a mock implementation of GitClient
type MockGitClient struct {
	contextFunc func(ctx context.Context) (*model.GitContext, error)
	pushTagFunc func(ctx context.Context, name, commitSHA, message string) error
	pushCalls   []MockPushTagCall
}

type MockPushTagCall struct {
	Name      string
	CommitSHA string
	Message   string
}

func (m *MockGitClient) Context(ctx context.Context) (*model.GitContext, error) {
	if m.contextFunc != nil {
		return m.contextFunc(ctx)
	}
	return &model.GitContext{
		Repository: "cloudforet-io/console",
		CommitSHA:  "fedcba9876543210fedcba9876543210fedcba98",
		Branch:     "master",
	}, nil
}

func (m *MockGitClient) PushTag(ctx context.Context, name, commitSHA, message string) error {
	m.pushCalls = append(m.pushCalls, MockPushTagCall{Name: name, CommitSHA: commitSHA, Message: message})
	if m.pushTagFunc != nil {
		return m.pushTagFunc(ctx, name, commitSHA, message)
	}
	return nil
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	notifyFunc func(ctx context.Context, report *model.RunReport) error
	reports    []*model.RunReport
}

func (m *MockNotifier) Notify(ctx context.Context, report *model.RunReport) error {
	m.reports = append(m.reports, report)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, report)
	}
	return nil
}

// MockPublisher is a mock implementation of PackagePublisher
type MockPublisher struct {
	publishFunc func(ctx context.Context, req *model.ReleaseRequest) error
	calls       int
}

func (m *MockPublisher) Publish(ctx context.Context, req *model.ReleaseRequest) error {
	m.calls++
	if m.publishFunc != nil {
		return m.publishFunc(ctx, req)
	}
	return nil
}

// MockAnnouncer is a mock implementation of AnnounceUseCase
type MockAnnouncer struct {
	draftFunc func(ctx context.Context, report *model.RunReport) (*model.Announcement, error)
	calls     int
}

func (m *MockAnnouncer) Draft(ctx context.Context, report *model.RunReport) (*model.Announcement, error) {
	m.calls++
	if m.draftFunc != nil {
		return m.draftFunc(ctx, report)
	}
	return &model.Announcement{Headline: "Release is out", Summary: "A new version was released."}, nil
}

// MockArchive is a mock implementation of ReportArchive
type MockArchive struct {
	saved []*model.RunReport
}

func (m *MockArchive) Save(ctx context.Context, report *model.RunReport) (string, error) {
	m.saved = append(m.saved, report)
	return "mem://" + string(report.RunID), nil
}

func putRun(t *testing.T, store interfaces.RunLedger) *model.PipelineRun {
	t.Helper()
	req := model.ReleaseRequest{
		Version:     "2.0.0",
		Platforms:   model.Platforms{model.PlatformAMD64},
		Repository:  "cloudforet-io/console",
		CommitSHA:   "fedcba9876543210fedcba9876543210fedcba98",
		RequestedAt: time.Now().UTC(),
	}
	run := model.NewPipelineRun(req, types.TriggerManual)
	gt.NoError(t, store.Put(context.Background(), run))
	return run
}

func stageStatus(t *testing.T, run *model.PipelineRun, name types.StageName) model.StageStatus {
	t.Helper()
	result, ok := run.StageResult(name)
	gt.True(t, ok)
	return result.Status
}

func TestPipeline_DefaultManifest(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	creds := &MockCredentialSource{}
	builder := &MockBuilder{}
	git := &MockGitClient{}
	notifier := &MockNotifier{}
	publisher := &MockPublisher{}

	reg := prometheus.NewRegistry()
	pipeline := usecase.NewPipeline(store,
		usecase.WithCredentialSource(creds),
		usecase.WithBuilder(builder),
		usecase.WithGitClient(git),
		usecase.WithNotifier(notifier),
		usecase.WithPublisher(publisher),
		usecase.WithRecorder(metrics.NewPrometheus(reg)),
	)

	run := putRun(t, store)
	result, err := pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)

	// Only the image stage is active in the default pipeline
	gt.Equal(t, result.Status, model.RunStatusSucceeded)
	gt.Equal(t, stageStatus(t, result, types.StageTag), model.StageStatusDisabled)
	gt.Equal(t, stageStatus(t, result, types.StagePublish), model.StageStatusDisabled)
	gt.Equal(t, stageStatus(t, result, types.StageImage), model.StageStatusSucceeded)
	gt.Equal(t, stageStatus(t, result, types.StageNotify), model.StageStatusDisabled)

	// Exactly one image, tagged with the commit SHA
	gt.Equal(t, creds.calls, 1)
	gt.Number(t, len(builder.calls)).Equal(1)
	gt.NotNil(t, result.Image)
	gt.Equal(t, result.Image.Tag, "fedcba9876543210fedcba9876543210fedcba98")
	gt.Equal(t, result.Image.String(), "ghcr.io/cloudforet-io/console:fedcba9876543210fedcba9876543210fedcba98")

	// Disabled stages never touch their infrastructure
	gt.Number(t, len(git.pushCalls)).Equal(0)
	gt.Equal(t, publisher.calls, 0)
	gt.Number(t, len(notifier.reports)).Equal(0)

	// Terminal state is persisted
	stored, err := store.Get(ctx, run.ID)
	gt.NoError(t, err)
	gt.Equal(t, stored.Status, model.RunStatusSucceeded)

	count, err := testutil.GatherAndCount(reg, "catapult_stage_results_total")
	gt.NoError(t, err)
	gt.Number(t, count).Greater(0)
}

func TestPipeline_FailureHaltsSubsequentStages(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	builder := &MockBuilder{
		buildFunc: func(ctx context.Context, cred *model.RegistryCredential, req *model.ReleaseRequest) (*model.BuildResult, error) {
			return nil, goerr.Wrap(errors.New("denied"), "failed to push image", goerr.T(types.ErrTagPush))
		},
	}
	notifier := &MockNotifier{}

	manifest := &model.Manifest{
		Stages: []model.StageSpec{
			{Name: types.StageImage, Enabled: true},
			{Name: types.StageNotify, Enabled: true, Needs: []types.StageName{types.StageImage}},
		},
	}
	gt.NoError(t, manifest.Validate())

	pipeline := usecase.NewPipeline(store,
		usecase.WithManifest(manifest),
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(builder),
		usecase.WithNotifier(notifier),
	)

	run := putRun(t, store)
	result, err := pipeline.Execute(ctx, run.ID)
	gt.Error(t, err)

	gt.Equal(t, result.Status, model.RunStatusFailed)
	gt.Equal(t, stageStatus(t, result, types.StageImage), model.StageStatusFailed)
	gt.Equal(t, stageStatus(t, result, types.StageNotify), model.StageStatusSkipped)
	gt.Number(t, len(notifier.reports)).Equal(0)

	imageResult, ok := result.StageResult(types.StageImage)
	gt.True(t, ok)
	gt.Equal(t, imageResult.ErrorKind, "push")
	gt.String(t, imageResult.Error).Contains("denied")
}

func TestPipeline_DisabledDependencyGatesStage(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	publisher := &MockPublisher{}

	// publish needs tag, but tag is administratively disabled
	manifest := &model.Manifest{
		Stages: []model.StageSpec{
			{Name: types.StageTag, Enabled: false},
			{Name: types.StagePublish, Enabled: true, Needs: []types.StageName{types.StageTag}},
			{Name: types.StageImage, Enabled: true},
		},
	}
	gt.NoError(t, manifest.Validate())

	git := &MockGitClient{}
	pipeline := usecase.NewPipeline(store,
		usecase.WithManifest(manifest),
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(&MockBuilder{}),
		usecase.WithGitClient(git),
		usecase.WithPublisher(publisher),
	)

	run := putRun(t, store)
	result, err := pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)

	gt.Equal(t, result.Status, model.RunStatusSucceeded)
	gt.Equal(t, stageStatus(t, result, types.StageTag), model.StageStatusDisabled)
	gt.Equal(t, stageStatus(t, result, types.StagePublish), model.StageStatusSkipped)
	gt.Equal(t, stageStatus(t, result, types.StageImage), model.StageStatusSucceeded)

	gt.Number(t, len(git.pushCalls)).Equal(0)
	gt.Equal(t, publisher.calls, 0)
}

func TestPipeline_CredentialFailureIsAuth(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	creds := &MockCredentialSource{
		credentialFunc: func(ctx context.Context) (*model.RegistryCredential, error) {
			return nil, errors.New("token exchange rejected")
		},
	}
	builder := &MockBuilder{}

	pipeline := usecase.NewPipeline(store,
		usecase.WithCredentialSource(creds),
		usecase.WithBuilder(builder),
	)

	run := putRun(t, store)
	result, err := pipeline.Execute(ctx, run.ID)
	gt.Error(t, err)

	gt.Equal(t, result.Status, model.RunStatusFailed)
	imageResult, ok := result.StageResult(types.StageImage)
	gt.True(t, ok)
	gt.Equal(t, imageResult.Status, model.StageStatusFailed)
	gt.Equal(t, imageResult.ErrorKind, "auth")

	// No build is attempted without a credential
	gt.Number(t, len(builder.calls)).Equal(0)
}

func TestPipeline_TagStage(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	git := &MockGitClient{}

	manifest := &model.Manifest{
		Stages: []model.StageSpec{
			{Name: types.StageTag, Enabled: true},
		},
	}
	gt.NoError(t, manifest.Validate())

	pipeline := usecase.NewPipeline(store,
		usecase.WithManifest(manifest),
		usecase.WithGitClient(git),
	)

	run := putRun(t, store)
	result, err := pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)
	gt.Equal(t, result.Status, model.RunStatusSucceeded)

	gt.Number(t, len(git.pushCalls)).Equal(1)
	gt.Equal(t, git.pushCalls[0].Name, "v2.0.0")
	gt.Equal(t, git.pushCalls[0].CommitSHA, "fedcba9876543210fedcba9876543210fedcba98")
	gt.String(t, git.pushCalls[0].Message).Contains("v2.0.0")
}

func TestPipeline_NotifyStage(t *testing.T) {
	ctx := context.Background()

	manifest := &model.Manifest{
		Stages: []model.StageSpec{
			{Name: types.StageImage, Enabled: true},
			{Name: types.StageNotify, Enabled: true, Needs: []types.StageName{types.StageImage}},
		},
	}
	gt.NoError(t, manifest.Validate())

	t.Run("report carries drafted announcement", func(t *testing.T) {
		store := ledger.NewMemory()
		notifier := &MockNotifier{}
		announcer := &MockAnnouncer{}

		pipeline := usecase.NewPipeline(store,
			usecase.WithManifest(manifest),
			usecase.WithCredentialSource(&MockCredentialSource{}),
			usecase.WithBuilder(&MockBuilder{}),
			usecase.WithNotifier(notifier),
			usecase.WithAnnouncer(announcer),
		)

		run := putRun(t, store)
		result, err := pipeline.Execute(ctx, run.ID)
		gt.NoError(t, err)
		gt.Equal(t, result.Status, model.RunStatusSucceeded)

		gt.Equal(t, announcer.calls, 1)
		gt.Number(t, len(notifier.reports)).Equal(1)

		report := notifier.reports[0]
		gt.Equal(t, report.Status, model.RunStatusSucceeded)
		gt.Equal(t, report.Version, "2.0.0")
		gt.String(t, report.Image).Contains("cloudforet-io/console")
		gt.NotNil(t, report.Announcement)
		gt.Equal(t, report.Announcement.Headline, "Release is out")
	})

	t.Run("announcer failure does not fail the stage", func(t *testing.T) {
		store := ledger.NewMemory()
		notifier := &MockNotifier{}
		announcer := &MockAnnouncer{
			draftFunc: func(ctx context.Context, report *model.RunReport) (*model.Announcement, error) {
				return nil, errors.New("llm unavailable")
			},
		}

		pipeline := usecase.NewPipeline(store,
			usecase.WithManifest(manifest),
			usecase.WithCredentialSource(&MockCredentialSource{}),
			usecase.WithBuilder(&MockBuilder{}),
			usecase.WithNotifier(notifier),
			usecase.WithAnnouncer(announcer),
		)

		run := putRun(t, store)
		result, err := pipeline.Execute(ctx, run.ID)
		gt.NoError(t, err)
		gt.Equal(t, result.Status, model.RunStatusSucceeded)

		gt.Number(t, len(notifier.reports)).Equal(1)
		gt.Value(t, notifier.reports[0].Announcement).Nil()
	})
}

func TestPipeline_UnconfiguredStageFails(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()

	// tag is enabled but no git client is wired
	manifest := &model.Manifest{
		Stages: []model.StageSpec{
			{Name: types.StageTag, Enabled: true},
			{Name: types.StageImage, Enabled: true},
		},
	}
	gt.NoError(t, manifest.Validate())

	builder := &MockBuilder{}
	pipeline := usecase.NewPipeline(store,
		usecase.WithManifest(manifest),
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(builder),
	)

	run := putRun(t, store)
	result, err := pipeline.Execute(ctx, run.ID)
	gt.Error(t, err)

	gt.Equal(t, result.Status, model.RunStatusFailed)
	tagResult, ok := result.StageResult(types.StageTag)
	gt.True(t, ok)
	gt.Equal(t, tagResult.ErrorKind, "config")

	// The failure halts the image stage as well
	gt.Equal(t, stageStatus(t, result, types.StageImage), model.StageStatusSkipped)
	gt.Number(t, len(builder.calls)).Equal(0)
}

func TestPipeline_Canceled(t *testing.T) {
	store := ledger.NewMemory()
	builder := &MockBuilder{}

	pipeline := usecase.NewPipeline(store,
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(builder),
	)

	run := putRun(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := pipeline.Execute(ctx, run.ID)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.Canceled))

	gt.Equal(t, result.Status, model.RunStatusCanceled)
	gt.Number(t, len(result.Stages)).Equal(1)
	gt.Equal(t, result.Stages[0].Status, model.StageStatusCanceled)
	gt.Number(t, len(builder.calls)).Equal(0)
}

func TestPipeline_RunAlreadyStarted(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()

	pipeline := usecase.NewPipeline(store,
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(&MockBuilder{}),
	)

	run := putRun(t, store)
	_, err := pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)

	_, err = pipeline.Execute(ctx, run.ID)
	gt.Error(t, err)
	gt.Equal(t, types.ErrorKind(err), "bad_request")
}

func TestPipeline_ArchiveReceivesReport(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	archive := &MockArchive{}

	pipeline := usecase.NewPipeline(store,
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(&MockBuilder{}),
		usecase.WithArchive(archive),
	)

	run := putRun(t, store)
	_, err := pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)

	gt.Number(t, len(archive.saved)).Equal(1)
	gt.Equal(t, archive.saved[0].RunID, run.ID)
	gt.Equal(t, archive.saved[0].Status, model.RunStatusSucceeded)
}

func TestPipeline_SetManifest(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	git := &MockGitClient{}

	pipeline := usecase.NewPipeline(store,
		usecase.WithCredentialSource(&MockCredentialSource{}),
		usecase.WithBuilder(&MockBuilder{}),
		usecase.WithGitClient(git),
	)

	// Default pipeline never tags
	run := putRun(t, store)
	_, err := pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)
	gt.Number(t, len(git.pushCalls)).Equal(0)

	updated := &model.Manifest{
		Stages: []model.StageSpec{
			{Name: types.StageTag, Enabled: true},
		},
	}
	gt.NoError(t, updated.Validate())
	pipeline.SetManifest(updated)

	run = putRun(t, store)
	_, err = pipeline.Execute(ctx, run.ID)
	gt.NoError(t, err)
	gt.Number(t, len(git.pushCalls)).Equal(1)
}
