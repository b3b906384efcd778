package service

import (
	"path/filepath"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
)

// Artifacts resolves the on-disk contract between stages
type Artifacts struct {
	cacheDir string
	outDir   string
	dataDir  string
}

func NewArtifacts(cfg config.Config) Artifacts {
	return Artifacts{
		cacheDir: cfg.Paths.CacheDir,
		outDir:   cfg.Paths.OutDir,
		dataDir:  cfg.Paths.DataDir,
	}
}

func (a Artifacts) IndexJSON(distro string) string {
	return filepath.Join(a.cacheDir, "ros_index", "data."+distro+".json")
}

func (a Artifacts) RepoTable(distro string) string {
	return filepath.Join(a.cacheDir, "rosdistro", "repo_table."+distro+".json")
}

func (a Artifacts) PageCache() string {
	return filepath.Join(a.cacheDir, "index_html", "package_pages.db")
}

func (a Artifacts) Mapping() string {
	return filepath.Join(a.outDir, "mapping_packages_to_github.csv")
}

func (a Artifacts) MappingJSONL() string {
	return filepath.Join(a.outDir, "mapping_packages_to_github.jsonl")
}

func (a Artifacts) MappingFilled() string {
	return filepath.Join(a.outDir, "mapping_packages_to_github_with_index_html.csv")
}

func (a Artifacts) JoinStats() string {
	return filepath.Join(a.outDir, "stats", "join_stats.csv")
}

func (a Artifacts) Bucket(b model.Bucket) string {
	return filepath.Join(a.outDir, "diagnostics", string(b)+".csv")
}

func (a Artifacts) BucketSummary() string {
	return filepath.Join(a.outDir, "diagnostics", "bucket_summary.csv")
}

func (a Artifacts) UnresolvedRepositories() string {
	return filepath.Join(a.outDir, "diagnostics", "unresolved_repositories.csv")
}

func (a Artifacts) FinalDistro(distro string) string {
	return filepath.Join(a.outDir, "final", "final_"+distro+"_packages_to_github.csv")
}

func (a Artifacts) FinalAllDistros() string {
	return filepath.Join(a.outDir, "final", "final_all_distros_packages_to_github.csv")
}

func (a Artifacts) PaperAll() string {
	return filepath.Join(a.outDir, "final", "packages_to_repos_all.csv")
}

func (a Artifacts) PaperGithubOnly() string {
	return filepath.Join(a.outDir, "final", "packages_to_repos_github_only.csv")
}

func (a Artifacts) UniqueRepos() string {
	return filepath.Join(a.outDir, "repos", "github_repos_unique.csv")
}

func (a Artifacts) UniqueReposByDistro() string {
	return filepath.Join(a.outDir, "repos", "github_repos_unique_by_distro.csv")
}

func (a Artifacts) Overlap() string {
	return filepath.Join(a.outDir, "repos", "repo_overlap_summary.csv")
}

func (a Artifacts) RepoDir(ref model.RepoRef) string {
	return filepath.Join(a.dataDir, ref.DirName())
}

// MissingSnapshots lists the snapshot files of a repository that are absent, empty or not valid JSON
func (a Artifacts) MissingSnapshots(ref model.RepoRef) []string {
	dir := a.RepoDir(ref)
	missing := make([]string, 0)

	for _, f := range model.SnapshotFiles {
		if !storage.SnapshotValid(filepath.Join(dir, f)) {
			missing = append(missing, f)
		}
	}

	return missing
}

func (a Artifacts) DataDir() string {
	return a.dataDir
}

func (a Artifacts) FinalRepoDataset() string {
	return filepath.Join(a.outDir, "final", "final_repo_dataset.csv")
}
