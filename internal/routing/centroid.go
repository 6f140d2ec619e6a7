package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beigebox/beigebox/internal/embedclient"
	"github.com/beigebox/beigebox/pkg/bbtypes"
)

// LoadCentroids reads every *.json file in dir, each holding one
// bbtypes.Centroid, and returns them sorted by route name so ties resolve
// deterministically at classify time.
func LoadCentroids(dir string) ([]bbtypes.Centroid, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var centroids []bbtypes.Centroid
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var c bbtypes.Centroid
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("centroid %s: %w", e.Name(), err)
		}
		centroids = append(centroids, c)
	}
	sort.Slice(centroids, func(i, j int) bool { return centroids[i].Route < centroids[j].Route })
	return centroids, nil
}

// CentroidClassifier is stage 4 of the routing core: dot-product comparison
// of an embedded user message against every loaded centroid.
type CentroidClassifier struct {
	embedder  *embedclient.Client
	centroids []bbtypes.Centroid
	threshold float64
	routes    map[string]string // route name -> model
}

// NewCentroidClassifier builds a classifier over centroids, resolving each
// winning route to a model via routes.
func NewCentroidClassifier(embedder *embedclient.Client, centroids []bbtypes.Centroid, threshold float64, routes map[string]string) *CentroidClassifier {
	return &CentroidClassifier{embedder: embedder, centroids: centroids, threshold: threshold, routes: routes}
}

// centroidResult is the outcome of a classify attempt, surfaced in wire
// events regardless of whether it was terminal.
type centroidResult struct {
	Route      string
	Model      string
	Confidence float64
	Terminal   bool
}

// Classify embeds text and scores it against every centroid. If no
// centroids are loaded, the stage is skipped (Terminal false, Route "").
func (c *CentroidClassifier) classify(ctx context.Context, text string) (centroidResult, error) {
	if len(c.centroids) == 0 || c.embedder == nil {
		return centroidResult{}, nil
	}
	vec, err := c.embedder.EmbedOne(ctx, text)
	if err != nil {
		return centroidResult{}, err
	}

	type scored struct {
		route string
		score float64
	}
	scores := make([]scored, 0, len(c.centroids))
	for _, cen := range c.centroids {
		scores = append(scores, scored{route: cen.Route, score: embedclient.Dot(vec, cen.Vector)})
	}
	// centroids are pre-sorted by route name, so a stable sort by
	// descending score keeps the lexicographically smallest name first
	// among exact ties.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	top := scores[0]
	var confidence float64
	if len(scores) > 1 {
		confidence = top.score - scores[1].score
	} else {
		confidence = top.score
	}

	result := centroidResult{Route: top.route, Confidence: confidence}
	if confidence >= c.threshold {
		result.Model = c.routes[top.route]
		result.Terminal = result.Model != ""
	}
	return result, nil
}
