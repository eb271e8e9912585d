package manifest

import (
	"path"
	"strings"
)

// ComputePartitionID derives the partition ID for a file owned by
// root: "{root}_{parent_directory_or_'root'}" (spec §3.3). file is a
// repo-relative POSIX path.
func ComputePartitionID(root, file string) string {
	file = strings.ReplaceAll(file, "\\", "/")
	dir := path.Dir(file)
	if dir == "." || dir == "/" || dir == "" {
		dir = "root"
	}
	return root + "_" + dir
}

// SanitizeFilename converts a partition ID into a safe on-disk
// filename by replacing '/', '\\', ':' with '_' and appending ".db"
// (spec §4.7).
func SanitizeFilename(partitionID string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(partitionID) + ".db"
}

// CrossRefsFilename is the fixed filename for the cross-ref store
// (spec §4.7).
const CrossRefsFilename = "cross_refs.db"

// PartitionsDirName is the directory under the prism directory holding
// partition databases (spec §4.7).
const PartitionsDirName = "partitions"
