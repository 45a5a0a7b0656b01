package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/gt"
	"gopkg.in/yaml.v3"
)

func TestDefaultManifest(t *testing.T) {
	m := model.DefaultManifest()
	gt.NoError(t, m.Validate())

	image, ok := m.Stage(types.StageImage)
	gt.V(t, ok).Equal(true)
	gt.V(t, image.Enabled).Equal(true)

	for _, name := range []types.StageName{types.StageTag, types.StagePublish, types.StageNotify} {
		st, ok := m.Stage(name)
		gt.V(t, ok).Equal(true)
		gt.V(t, st.Enabled).Equal(false)
	}
}

func TestManifestValidate(t *testing.T) {
	cases := []struct {
		name     string
		manifest model.Manifest
		wantErr  bool
	}{
		{
			name: "minimal valid",
			manifest: model.Manifest{
				Stages: []model.StageSpec{
					{Name: types.StageImage, Enabled: true},
				},
			},
		},
		{
			name:     "no stages",
			manifest: model.Manifest{},
			wantErr:  true,
		},
		{
			name: "unknown stage",
			manifest: model.Manifest{
				Stages: []model.StageSpec{
					{Name: "deploy", Enabled: true},
				},
			},
			wantErr: true,
		},
		{
			name: "duplicated stage",
			manifest: model.Manifest{
				Stages: []model.StageSpec{
					{Name: types.StageImage},
					{Name: types.StageImage},
				},
			},
			wantErr: true,
		},
		{
			name: "dependency on later stage",
			manifest: model.Manifest{
				Stages: []model.StageSpec{
					{Name: types.StageTag, Needs: []types.StageName{types.StageImage}},
					{Name: types.StageImage},
				},
			},
			wantErr: true,
		},
		{
			name: "dependency on itself",
			manifest: model.Manifest{
				Stages: []model.StageSpec{
					{Name: types.StageTag, Needs: []types.StageName{types.StageTag}},
				},
			},
			wantErr: true,
		},
		{
			name: "valid dependency chain",
			manifest: model.Manifest{
				Stages: []model.StageSpec{
					{Name: types.StageTag, Enabled: true},
					{Name: types.StagePublish, Enabled: true, Needs: []types.StageName{types.StageTag}},
				},
			},
		},
		{
			name: "schedule without interval",
			manifest: model.Manifest{
				Stages:   []model.StageSpec{{Name: types.StageImage, Enabled: true}},
				Schedule: &model.Schedule{},
			},
			wantErr: true,
		},
		{
			name: "schedule with bad arch",
			manifest: model.Manifest{
				Stages: []model.StageSpec{{Name: types.StageImage, Enabled: true}},
				Schedule: &model.Schedule{
					Interval:      model.Duration(time.Hour),
					ContainerArch: "linux/arm64",
				},
			},
			wantErr: true,
		},
		{
			name: "valid schedule",
			manifest: model.Manifest{
				Stages: []model.StageSpec{{Name: types.StageImage, Enabled: true}},
				Schedule: &model.Schedule{
					Interval:      model.Duration(24 * time.Hour),
					Version:       "2.0.0",
					ContainerArch: "linux/amd64",
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.manifest.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestDurationYAML(t *testing.T) {
	var spec model.StageSpec
	gt.NoError(t, yaml.Unmarshal([]byte("name: image\nenabled: true\ntimeout: 30m\n"), &spec))
	gt.Equal(t, spec.Timeout.Duration(), 30*time.Minute)

	if err := yaml.Unmarshal([]byte("name: image\ntimeout: soon\n"), &spec); err == nil {
		t.Error("invalid duration should fail to unmarshal")
	}
}
