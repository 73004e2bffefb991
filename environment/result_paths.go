package environment

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/quarrylabs/quarry-go/reporting"
)

// AssetsDirName is the fixed directory appended to any configured results
// root that does not already end with it.
const AssetsDirName = "QuarryAssets"

// BlacklistAll is the sentinel that excludes every result artifact.
const BlacklistAll = "ALL"

// Category names one artifact kind in the result path catalogue.
type Category string

const (
	CategoryRoot               Category = "root"
	CategoryCheckpoint         Category = "checkpoint"
	CategoryDescription        Category = "description"
	CategoryHeartbeat          Category = "heartbeat"
	CategoryPredictionsHoldout Category = "predictions_holdout"
	CategoryPredictionsInFold  Category = "predictions_in_fold"
	CategoryPredictionsOOF     Category = "predictions_oof"
	CategoryPredictionsTest    Category = "predictions_test"
	CategoryScriptBackup       Category = "script_backup"
	CategoryTestedKeys         Category = "tested_keys"
	CategoryKeyAttributeLookup Category = "key_attribute_lookup"
	CategoryLeaderboards       Category = "leaderboards"
	CategoryGlobalLeaderboard  Category = "global_leaderboard"
)

// catalogueOrder fixes planner iteration over the catalogue.
var catalogueOrder = []Category{
	CategoryRoot,
	CategoryCheckpoint,
	CategoryDescription,
	CategoryHeartbeat,
	CategoryPredictionsHoldout,
	CategoryPredictionsInFold,
	CategoryPredictionsOOF,
	CategoryPredictionsTest,
	CategoryScriptBackup,
	CategoryTestedKeys,
	CategoryKeyAttributeLookup,
	CategoryLeaderboards,
	CategoryGlobalLeaderboard,
}

// resultFileSubDirPaths maps every non-root category to its fixed location
// under the assets root.
var resultFileSubDirPaths = map[Category]string{
	CategoryCheckpoint:         "Experiments/Checkpoints",
	CategoryDescription:        "Experiments/Descriptions",
	CategoryHeartbeat:          "Experiments/Heartbeats",
	CategoryPredictionsHoldout: "Experiments/PredictionsHoldout",
	CategoryPredictionsInFold:  "Experiments/PredictionsInFold",
	CategoryPredictionsOOF:     "Experiments/PredictionsOOF",
	CategoryPredictionsTest:    "Experiments/PredictionsTest",
	CategoryScriptBackup:       "Experiments/ScriptBackups",
	CategoryTestedKeys:         "TestedKeys",
	CategoryKeyAttributeLookup: "KeyAttributeLookup",
	CategoryLeaderboards:       "Leaderboards",
	CategoryGlobalLeaderboard:  "Leaderboards/GlobalLeaderboard.csv",
}

// protectedCategories constitute the bare minimum of experiment recording;
// blacklisting them is allowed but warned against.
var protectedCategories = []Category{CategoryDescription, CategoryTestedKeys}

// ResultPaths is the planned catalogue. An empty string marks an absent
// path (blacklisted, prerequisite dataset missing, or persistence
// disabled). Populated once by path planning and never mutated afterward.
type ResultPaths map[Category]string

func newResultPaths() ResultPaths {
	paths := make(ResultPaths, len(catalogueOrder))
	for _, category := range catalogueOrder {
		paths[category] = ""
	}
	return paths
}

// Blacklist is the set of categories excluded from persistence, or the
// "everything" sentinel.
type Blacklist struct {
	All        bool
	Categories []Category
}

func (b Blacklist) clone() Blacklist {
	return Blacklist{All: b.All, Categories: slices.Clone(b.Categories)}
}

func (b Blacklist) Contains(category Category) bool {
	return slices.Contains(b.Categories, category)
}

// add appends a category unless it is already present.
func (b Blacklist) add(category Category) Blacklist {
	if b.Contains(category) {
		return b
	}
	b.Categories = append(b.Categories, category)
	return b
}

// Catalogue returns every category in planner order.
func Catalogue() []Category {
	return slices.Clone(catalogueOrder)
}

func blacklistableCategories() []string {
	out := make([]string, 0, len(catalogueOrder)-1)
	for _, category := range catalogueOrder {
		if category == CategoryRoot {
			continue
		}
		out = append(out, string(category))
	}
	return out
}

// validateFileBlacklist checks every user-supplied entry against the
// catalogue. The sentinel and protected categories warn; out-of-set
// entries are fatal.
func validateFileBlacklist(bl Blacklist, reporter reporting.Sink) (Blacklist, error) {
	if bl.All {
		reporter.Warn("file blacklist is %q: nothing will be saved", BlacklistAll)
		return Blacklist{All: true}, nil
	}
	out := Blacklist{Categories: make([]Category, 0, len(bl.Categories))}
	for _, entry := range bl.Categories {
		if entry == CategoryRoot || resultFileSubDirPaths[entry] == "" {
			return Blacklist{}, fmt.Errorf("%w: invalid blacklist entry %q; expected one of: %s",
				ErrUnknownCategory, entry, strings.Join(blacklistableCategories(), ", "))
		}
		if slices.Contains(protectedCategories, entry) {
			reporter.Warn("including %q in the file blacklist severely impairs experiment bookkeeping", entry)
		}
		out.Categories = append(out.Categories, entry)
	}
	return out, nil
}

// formatResultPaths populates the catalogue from the validated blacklist
// and dataset presence. Categories whose prerequisite dataset is missing
// are implicitly blacklisted first; implicit additions never warn.
func (e *Environment) formatResultPaths() {
	if e.FileBlacklist.All {
		return
	}
	if e.RootResultsPath == "" {
		return
	}

	if e.HoldoutDataset == nil {
		e.FileBlacklist = e.FileBlacklist.add(CategoryPredictionsHoldout)
	}
	if e.TestDataset == nil {
		e.FileBlacklist = e.FileBlacklist.add(CategoryPredictionsTest)
	}

	for _, category := range catalogueOrder {
		if category == CategoryRoot {
			continue
		}
		if e.FileBlacklist.Contains(category) {
			e.ResultPaths[category] = ""
			continue
		}
		e.ResultPaths[category] = filepath.Join(e.RootResultsPath, resultFileSubDirPaths[category])
	}
}
