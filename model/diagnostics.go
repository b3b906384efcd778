package model

// Bucket names one outcome of the resolution; a package lands in exactly one
type Bucket string

const (
	BucketResolved   Bucket = "resolved_ok"
	BucketMissingKey Bucket = "missing_key__not_in_rosdistro_release"
	BucketMissingURL Bucket = "missing_url__repo_key_without_url"
	BucketNonGithub  Bucket = "non_github_url"
)

// Buckets lists every bucket in output order
var Buckets = []Bucket{BucketResolved, BucketMissingKey, BucketMissingURL, BucketNonGithub}

// DiagnosticBuckets are the buckets kept for manual review
var DiagnosticBuckets = []Bucket{BucketMissingKey, BucketMissingURL, BucketNonGithub}

// StatusBucket maps a resolution status to its bucket
func StatusBucket(status ResolutionStatus) Bucket {
	switch status {
	case StatusResolved:
		return BucketResolved
	case StatusNonGithub:
		return BucketNonGithub
	case StatusMissingURL:
		return BucketMissingURL
	default:
		return BucketMissingKey
	}
}

// Reasons a repository could not be snapshotted
const (
	UnresolvedNotFound         = "not_found"
	UnresolvedRateLimit        = "rate_limit_exhausted"
	UnresolvedTransientNetwork = "transient_network"
	UnresolvedMalformed        = "malformed_upstream_data"
	UnresolvedUnparsable       = "unparsable_identifier"
	UnresolvedFetch            = "fetch_error"
)

// UnresolvedRepository is written to diagnostics when feature extraction gives up on a repository
type UnresolvedRepository struct {
	FullName string
	Reason   string
	Detail   string
}

func UnresolvedRepositoryHeader() []string {
	return []string{"full_name", "reason", "detail"}
}

func (u UnresolvedRepository) CSVRow() []string {
	return []string{u.FullName, u.Reason, u.Detail}
}
