package ontology

import (
	"fmt"
	"log"
	"sync"

	"clipOntology/brain"
	"clipOntology/core"
)

// StateStore persists the master ontology and recipe index atomically per
// merge. Implementations live in the storage package.
type StateStore interface {
	SaveState(m *MasterOntology, r *brain.RecipeIndex) error
}

// AnnotatedClip pairs a validated clip with the canonical values its raw
// labels resolved to. Produced per merge for report rendering; never
// persisted individually.
type AnnotatedClip struct {
	core.ClipAnnotation
	Canonical map[string]string `json:"canonical"`
}

// Merger folds validated annotation batches into the master ontology and
// recipe index. One merge is a single critical section: clones are mutated
// and persisted, then swapped in, so readers always see consistent state and
// a failed persist leaves the aggregate unmodified.
type Merger struct {
	mu     sync.RWMutex
	policy ResolvePolicy
	master *MasterOntology
	brain  *brain.RecipeIndex
	store  StateStore
	logger *log.Logger
}

func NewMerger(master *MasterOntology, index *brain.RecipeIndex, store StateStore, policy ResolvePolicy) *Merger {
	if master == nil {
		master = NewMasterOntology()
	}
	if index == nil {
		index = brain.NewRecipeIndex()
	}
	return &Merger{
		policy: policy,
		master: master,
		brain:  index,
		store:  store,
		logger: log.New(log.Writer(), "[MERGE] ", log.LstdFlags),
	}
}

// MergeVideo folds one video's validated clips into the master state in
// original clip order and returns the merge summary plus the annotated clips
// for report rendering. The merger has no dedup-by-video-id safeguard; the
// caller tracks which videos were already merged.
func (mg *Merger) MergeVideo(batch core.ValidatedBatch) (*core.MergeSummary, []AnnotatedClip, error) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	work, err := mg.master.Clone()
	if err != nil {
		return nil, nil, fmt.Errorf("clone ontology: %w", err)
	}
	index, err := mg.brain.Clone()
	if err != nil {
		return nil, nil, fmt.Errorf("clone recipe index: %w", err)
	}

	summary := &core.MergeSummary{
		VideoID:      batch.VideoID,
		ClipsDropped: batch.Dropped,
		NewValues:    make(map[string][]string),
	}

	annotated := make([]AnnotatedClip, 0, len(batch.Clips))
	prevFunction := ""
	for _, clip := range batch.Clips {
		canonical := mg.mergeClip(work, batch.VideoID, clip, summary)
		annotated = append(annotated, AnnotatedClip{ClipAnnotation: clip, Canonical: canonical})

		function := canonical[CategoryClipFunction]
		if function != "" && function != UnknownToken {
			index.Record(core.RecipeEntry{
				VideoID: batch.VideoID,
				Script:  clip.ScriptSegment,
				Purpose: clip.PurposeSummary,
				Start:   clip.Start,
				End:     clip.End,
				Labels:  canonical,
			})
			if prevFunction != "" {
				index.RecordTransition(prevFunction, function)
			}
			prevFunction = function
		}
		summary.ClipsMerged++
	}

	work.TotalClips += summary.ClipsMerged
	work.VideosAnalyzed++
	work.UpdatedAt = nowRFC3339()
	index.VideosLearnedFrom++
	summary.VideosAnalyzed = work.VideosAnalyzed

	if mg.store != nil {
		if err := mg.store.SaveState(work, index); err != nil {
			return nil, nil, fmt.Errorf("persist merged state: %w", err)
		}
	}

	mg.master = work
	mg.brain = index

	mg.logger.Printf("video %s merged: %d clips, %d dropped, %d new values, %d ambiguous",
		batch.VideoID, summary.ClipsMerged, len(summary.ClipsDropped), summary.NewValueCount(), summary.AmbiguousMatches)
	return summary, annotated, nil
}

// mergeClip resolves every category present on the clip, then updates the
// correlation tables and duration stats from the resolved values.
func (mg *Merger) mergeClip(work *MasterOntology, videoID string, clip core.ClipAnnotation, summary *core.MergeSummary) map[string]string {
	canonical := make(map[string]string, len(clip.Labels))

	// Categories iterate in declared order so similarity resolution is
	// reproducible for a fixed store state.
	for _, def := range Categories {
		raw, present := clip.Labels[def.Name]
		if !present {
			continue
		}
		result := work.Stores[def.Name].Resolve(raw, videoID, mg.policy)
		canonical[def.Name] = result.Token

		// Every new-vs-merged decision is logged for auditability.
		switch {
		case result.Ambiguous:
			summary.AmbiguousMatches++
			summary.NewValues[def.Name] = append(summary.NewValues[def.Name], result.Token)
			mg.logger.Printf("WARN %s: ambiguous match %q vs %q (score %.3f), created new value %q",
				def.Name, raw, result.BestMatch, result.Score, result.Token)
		case result.Created && result.Token != UnknownToken:
			summary.NewValues[def.Name] = append(summary.NewValues[def.Name], result.Token)
			mg.logger.Printf("%s: new value %q (raw %q)", def.Name, result.Token, raw)
		case result.Merged:
			mg.logger.Printf("%s: folded %q into %q (score %.3f)", def.Name, raw, result.Token, result.Score)
		}
	}

	for _, pair := range TrackablePairs {
		a, okA := canonical[pair[0]]
		b, okB := canonical[pair[1]]
		if !okA || !okB || a == UnknownToken || b == UnknownToken {
			continue
		}
		work.Correlation(pair[0], pair[1]).Increment(a, b)
	}

	if function := canonical[CategoryClipFunction]; function != "" && function != UnknownToken {
		work.DurationStatFor(function).Update(clip.Duration())
	}
	return canonical
}

// Snapshot returns the current master ontology and recipe index. The
// returned values are the published copies, which are never mutated again
// after a merge swaps them in, so readers may use them without locking.
func (mg *Merger) Snapshot() (*MasterOntology, *brain.RecipeIndex) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.master, mg.brain
}

// VocabularyHint exports the current known vocabulary for the next
// annotation request.
func (mg *Merger) VocabularyHint(perCategory int) map[string][]string {
	master, _ := mg.Snapshot()
	return master.VocabularyHint(perCategory)
}
