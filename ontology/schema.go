package ontology

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category name constants for the dimensions referenced in code.
const (
	CategoryShotType            = "shot_type"
	CategoryCameraAngle         = "camera_angle"
	CategoryCameraMovement      = "camera_movement"
	CategoryComposition         = "composition"
	CategorySettingType         = "setting_type"
	CategoryLightingStyle       = "lighting_style"
	CategoryColorMood           = "color_mood"
	CategorySubjectType         = "subject_type"
	CategorySubjectAction       = "subject_action"
	CategoryTextPurpose         = "text_purpose"
	CategoryEmotion             = "emotion"
	CategoryEmotionalIntensity  = "emotional_intensity"
	CategoryClipFunction        = "clip_function"
	CategoryNarrativeRole       = "narrative_role"
	CategoryPersuasionMechanism = "persuasion_mechanism"
	CategoryTransitionType      = "transition_type"
)

// CategoryDef declares one fixed labeling dimension. Categories are fixed at
// schema construction time; only their values grow.
type CategoryDef struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Categories is the fixed, ordered category list of the schema.
var Categories = []CategoryDef{
	{CategoryShotType, "Shot Types", "How the camera frames the subject", false},
	{CategoryCameraAngle, "Camera Angles", "Camera height/position relative to subject", false},
	{CategoryCameraMovement, "Camera Movements", "How the camera moves during the clip", false},
	{CategoryComposition, "Compositions", "How elements are arranged in frame", false},
	{CategorySettingType, "Setting Types", "Types of environments/locations", false},
	{CategoryLightingStyle, "Lighting Styles", "Lighting approaches", false},
	{CategoryColorMood, "Color Moods", "Overall color/mood palettes", false},
	{CategorySubjectType, "Subject Types", "What the clip focuses on", false},
	{CategorySubjectAction, "Subject Actions", "What subjects do in clips", false},
	{CategoryTextPurpose, "Text Purposes", "Why text appears on screen", false},
	{CategoryEmotion, "Emotions", "Emotions evoked by clips", false},
	{CategoryEmotionalIntensity, "Emotional Intensities", "How strong the emotion", false},
	{CategoryClipFunction, "Clip Functions", "Role of clip in ad structure", true},
	{CategoryNarrativeRole, "Narrative Roles", "Role in story arc", false},
	{CategoryPersuasionMechanism, "Persuasion Mechanisms", "Psychological techniques", false},
	{CategoryTransitionType, "Transition Types", "How clips connect", false},
}

// TrackablePairs declares which ordered category pairs get a correlation
// table. Symmetric pairs appear once.
var TrackablePairs = [][2]string{
	{CategoryEmotion, CategoryClipFunction},
	{CategoryShotType, CategoryClipFunction},
	{CategoryPersuasionMechanism, CategoryEmotion},
}

// IsKnownCategory reports whether name is part of the fixed schema.
func IsKnownCategory(name string) bool {
	for _, def := range Categories {
		if def.Name == name {
			return true
		}
	}
	return false
}

// RequiredCategories lists the categories a clip annotation must carry.
func RequiredCategories() []string {
	var out []string
	for _, def := range Categories {
		if def.Required {
			out = append(out, def.Name)
		}
	}
	return out
}

// MasterOntology is the root aggregate: per-category value stores, the
// correlation tables, the per-function duration statistics and the video
// counter. Owned exclusively by the Merger; readers only see snapshots.
type MasterOntology struct {
	Version        string                       `json:"version"`
	CreatedAt      string                       `json:"created_at"`
	UpdatedAt      string                       `json:"updated_at"`
	VideosAnalyzed int                          `json:"videos_analyzed"`
	TotalClips     int                          `json:"total_clips"`
	Stores         map[string]*ValueStore       `json:"categories"`
	Correlations   map[string]*CorrelationTable `json:"correlations"`
	DurationStats  map[string]*DurationStat     `json:"duration_stats"` // clip_function token -> stat
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewMasterOntology builds an empty schema with every declared category in
// open bootstrap mode.
func NewMasterOntology() *MasterOntology {
	now := nowRFC3339()
	m := &MasterOntology{
		Version:       "1.0",
		CreatedAt:     now,
		UpdatedAt:     now,
		Stores:        make(map[string]*ValueStore, len(Categories)),
		Correlations:  make(map[string]*CorrelationTable, len(TrackablePairs)),
		DurationStats: make(map[string]*DurationStat),
	}
	for _, def := range Categories {
		m.Stores[def.Name] = NewValueStore(def.Name)
	}
	for _, pair := range TrackablePairs {
		m.Correlations[pairKey(pair[0], pair[1])] = NewCorrelationTable(pair[0], pair[1])
	}
	return m
}

// Store returns the value store for a category, nil for unknown names.
func (m *MasterOntology) Store(category string) *ValueStore {
	return m.Stores[category]
}

// Correlation returns the table declared for (categoryA, categoryB).
func (m *MasterOntology) Correlation(categoryA, categoryB string) *CorrelationTable {
	return m.Correlations[pairKey(categoryA, categoryB)]
}

// DurationStat returns the stat bucket for a clip function, creating it on
// first use.
func (m *MasterOntology) DurationStatFor(function string) *DurationStat {
	stat, ok := m.DurationStats[function]
	if !ok {
		stat = &DurationStat{}
		m.DurationStats[function] = stat
	}
	return stat
}

// KnownValues returns the category vocabulary sorted by descending
// frequency, used to bias future annotation requests.
func (m *MasterOntology) KnownValues(category string) []ValueFreq {
	store := m.Stores[category]
	if store == nil {
		return nil
	}
	return store.KnownValues()
}

// VocabularyHint exports the top perCategory known values of every category,
// in declared category order. Empty categories are omitted.
func (m *MasterOntology) VocabularyHint(perCategory int) map[string][]string {
	hint := make(map[string][]string)
	for _, def := range Categories {
		known := m.KnownValues(def.Name)
		if len(known) == 0 {
			continue
		}
		if perCategory > 0 && len(known) > perCategory {
			known = known[:perCategory]
		}
		tokens := make([]string, len(known))
		for i, vf := range known {
			tokens[i] = vf.Token
		}
		hint[def.Name] = tokens
	}
	return hint
}

// Serialize renders the ontology as one structured JSON document. Map keys
// marshal in sorted order, so serialize/deserialize/re-serialize round-trips
// byte-identically.
func (m *MasterOntology) Serialize() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// DeserializeMasterOntology parses a persisted ontology document and checks
// it against the fixed category list.
func DeserializeMasterOntology(data []byte) (*MasterOntology, error) {
	var m MasterOntology
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse ontology document: %w", err)
	}
	if m.Stores == nil {
		m.Stores = make(map[string]*ValueStore, len(Categories))
	}
	if m.Correlations == nil {
		m.Correlations = make(map[string]*CorrelationTable, len(TrackablePairs))
	}
	if m.DurationStats == nil {
		m.DurationStats = make(map[string]*DurationStat)
	}
	// Persisted state may predate newly declared categories or pairs;
	// those start empty. A persisted category outside the fixed set is a
	// contract violation.
	for name := range m.Stores {
		if !IsKnownCategory(name) {
			return nil, fmt.Errorf("persisted ontology has undeclared category %q", name)
		}
	}
	for _, def := range Categories {
		if m.Stores[def.Name] == nil {
			m.Stores[def.Name] = NewValueStore(def.Name)
		}
		if m.Stores[def.Name].Values == nil {
			m.Stores[def.Name].Values = make(map[string]*CanonicalValue)
		}
	}
	for _, pair := range TrackablePairs {
		key := pairKey(pair[0], pair[1])
		if m.Correlations[key] == nil {
			m.Correlations[key] = NewCorrelationTable(pair[0], pair[1])
		}
		if m.Correlations[key].Counts == nil {
			m.Correlations[key].Counts = make(map[string]int)
		}
	}
	return &m, nil
}

// Clone deep-copies the ontology through its serialized form. The merger
// mutates a clone and swaps it in only after persistence succeeds.
func (m *MasterOntology) Clone() (*MasterOntology, error) {
	data, err := m.Serialize()
	if err != nil {
		return nil, err
	}
	return DeserializeMasterOntology(data)
}
