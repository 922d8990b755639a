package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/markov"
	"github.com/rushteam/markovkit/pipeline"
)

const pipelineYAML = `
pipeline:
  name: test-recommend
  nodes:
    - type: recall.fanout
      config:
        dedup: true
        sources:
          - type: markov
            limit: 5
          - type: hot
            ids: ["hot_1", "hot_2"]
    - type: filter
      config:
        filters:
          - type: blacklist
            item_ids: ["banned"]
          - type: expr
            expr: 'item.score < 0.0'
    - type: rank.behavior
      config:
        half_life_days: 7
    - type: rerank.topn
      config:
        n: 3
`

func TestDefaultFactoryBuildsPipelineFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(pipelineYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := pipeline.LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML() error: %v", err)
	}
	if cfg.Pipeline.Name != "test-recommend" {
		t.Errorf("pipeline name = %q", cfg.Pipeline.Name)
	}

	model := markov.NewMultiOrder(2)
	model.Train("u1", []string{"view_a", "click_a", "view_b", "click_b", "purchase_b"})

	factory := DefaultFactory(Deps{Model: model})
	pipe, err := cfg.BuildPipeline(factory)
	if err != nil {
		t.Fatalf("BuildPipeline() error: %v", err)
	}
	if len(pipe.Nodes) != 4 {
		t.Fatalf("pipeline has %d nodes, want 4", len(pipe.Nodes))
	}

	rctx := &core.RecommendContext{
		UserID:       "u1",
		RecentTokens: []string{"view_a", "click_a"},
	}
	candidates, err := pipe.Run(context.Background(), rctx, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected candidates from assembled pipeline")
	}
	if len(candidates) > 3 {
		t.Errorf("topn should cap at 3, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.ItemID == "banned" {
			t.Error("blacklisted item survived the filter")
		}
	}
}

func TestDefaultFactoryUnknownNode(t *testing.T) {
	factory := DefaultFactory(Deps{})
	if _, err := factory.Build("recall.unknown", nil); err == nil {
		t.Error("unknown node type should fail")
	}
}

func TestMarkovNodeRequiresModel(t *testing.T) {
	factory := DefaultFactory(Deps{})
	if _, err := factory.Build("recall.markov", map[string]interface{}{}); err == nil {
		t.Error("markov node without model should fail")
	}
}
