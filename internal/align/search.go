package align

import (
	"runtime"
	"sync"

	"github.com/ironsheep/cosmx-align/internal/imaging"
)

// SearchOptions tunes the orientation search.
type SearchOptions struct {
	// Scales is the template-matching scale ladder, tried in order.
	Scales []float64 `yaml:"scales"`

	// MinTemplateSize is the smallest template side, in pixels, worth
	// matching. Smaller templates lock onto speckle.
	MinTemplateSize int `yaml:"minTemplateSize"`

	// Workers bounds the number of orientation trials run concurrently;
	// 0 uses one worker per CPU. Set from the processing config section.
	Workers int `yaml:"-"`
}

// DefaultScales returns the ladder 0.3, 0.4, ..., 1.2.
func DefaultScales() []float64 {
	scales := make([]float64, 0, 10)
	for i := 3; i <= 12; i++ {
		scales = append(scales, float64(i)/10)
	}
	return scales
}

// DefaultSearchOptions returns the default ladder and a 20 px template floor.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Scales:          DefaultScales(),
		MinTemplateSize: 20,
		Workers:         0,
	}
}

// SearchResult holds one 16-way pass.
type SearchResult struct {
	// Mode is the matcher strategy the pass used: ModeFull or ModePartial.
	Mode Mode

	// Candidates are in canonical enumeration order.
	Candidates []Candidate

	Best Candidate
}

// Search runs one 16-orientation pass of the secondary mask against the
// primary. ModeFull uses phase correlation; any other mode uses multi-scale
// template matching.
func Search(he, cosmx *imaging.Mask, mode Mode, opts SearchOptions) *SearchResult {
	return search(he, cosmx, mode, opts, 0)
}

// search numbers candidates from indexBase so a fallback pass continues the
// enumeration of the pass before it.
func search(he, cosmx *imaging.Mask, mode Mode, opts SearchOptions, indexBase int) *SearchResult {
	if mode != ModeFull {
		mode = ModePartial
	}

	var full *fullReference
	var partial *partialReference
	if mode == ModeFull {
		full = newFullReference(he)
	} else {
		partial = newPartialReference(he)
	}

	orientations := imaging.Orientations()
	cands := make([]Candidate, len(orientations))

	trial := func(i int) {
		o := orientations[i]
		oriented := o.Apply(cosmx)

		var m matchResult
		if full != nil {
			m = full.match(oriented)
		} else {
			var ok bool
			m, ok = partial.match(oriented, opts.Scales, opts.MinTemplateSize)
			if !ok {
				m = matchResult{scale: 1.0, method: MethodTemplateMatchingFailed}
			}
		}

		c := Candidate{
			Index:      indexBase + i,
			Rotation:   o.Rotation,
			FlipX:      o.FlipX,
			FlipY:      o.FlipY,
			DX:         m.dx,
			DY:         m.dy,
			Scale:      m.scale,
			MatchScore: m.score,
			Method:     m.method,
		}
		if !c.Failed() {
			placed := prepareOriented(oriented, c, he.Size())
			c.OverlapScore = OverlapAt(he, placed, c, c.DX, c.DY)
		}
		c.CombinedScore = CombinedScore(c.MatchScore, c.OverlapScore)
		cands[i] = c
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(orientations))

	// Trials write only their own slot; selection below scans in index
	// order, so completion order has no effect on the outcome.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				trial(i)
			}
		}()
	}
	for i := range orientations {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	best, _ := SelectBest(cands)
	return &SearchResult{Mode: mode, Candidates: cands, Best: best}
}
