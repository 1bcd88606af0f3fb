package guard

import (
	"strconv"
	"strings"
)

// Verdict is the classification outcome for a scanned file.
type Verdict string

const (
	VerdictSafe       Verdict = "Safe"
	VerdictSuspicious Verdict = "Suspicious"
	VerdictMalicious  Verdict = "Malicious"
	VerdictUnknown    Verdict = "Unknown"
)

// IsThreat reports whether the verdict should count toward the threat total.
func (v Verdict) IsThreat() bool {
	return v == VerdictSuspicious || v == VerdictMalicious
}

// Source records how a verdict was reached.
type Source string

const (
	// SourceLocal means the verdict came from the signature cache or from
	// another in-flight scan of the same content.
	SourceLocal Source = "local"
	// SourceRemote means the reputation service was queried.
	SourceRemote Source = "remote"
	// SourceRateLimited means the request quota was exhausted and the file
	// was not checked remotely.
	SourceRateLimited Source = "rate_limited"
	// SourceError means the scan degraded due to a remote or I/O failure.
	SourceError Source = "error"
)

// NeutralScore is reported when no detection data is available.
const NeutralScore = 50

// ThreatReport holds the detection statistics returned by the reputation
// service for a single content hash.
type ThreatReport struct {
	Hash        string
	Harmless    int
	Malicious   int
	Suspicious  int
	Undetected  int
	Timeout     int
	HasAnalysis bool
}

// Verdict maps the report to a classification. Any malicious detection is
// conclusive; suspicious detections only matter past the threshold.
func (r *ThreatReport) Verdict(suspiciousThreshold int) Verdict {
	switch {
	case r.Malicious > 0:
		return VerdictMalicious
	case r.Suspicious > suspiciousThreshold:
		return VerdictSuspicious
	default:
		return VerdictSafe
	}
}

// SafetyScore derives a 0-100 score from the detection ratios.
// The harmless ratio contributes up to 70 points, the malicious+suspicious
// ratio subtracts up to 50, and a large harmless count adds a bonus.
// Reports without analysis data score NeutralScore.
func (r *ThreatReport) SafetyScore() int {
	if r == nil || !r.HasAnalysis {
		return NeutralScore
	}

	total := r.Harmless + r.Malicious + r.Suspicious + r.Undetected + r.Timeout
	if total == 0 {
		return NeutralScore
	}

	safeRatio := float64(r.Harmless) / float64(total)
	threatRatio := float64(r.Malicious+r.Suspicious) / float64(total)

	score := int(safeRatio*70) - int(threatRatio*50)

	if r.Harmless > 50 {
		score += 30
	} else if r.Harmless > 20 {
		score += 15
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ThreatLabel renders the report as the label stored in the signature cache.
func (r *ThreatReport) ThreatLabel(suspiciousThreshold int) string {
	switch r.Verdict(suspiciousThreshold) {
	case VerdictMalicious:
		return "malicious:" + strconv.Itoa(r.Malicious)
	case VerdictSuspicious:
		return "suspicious:" + strconv.Itoa(r.Suspicious)
	default:
		return ""
	}
}

// VerdictFromLabel derives a verdict from a cached threat label.
// An empty label means the hash was cached as clean.
func VerdictFromLabel(label string) Verdict {
	label = strings.ToLower(label)
	switch {
	case strings.Contains(label, "malicious"):
		return VerdictMalicious
	case strings.Contains(label, "suspicious"):
		return VerdictSuspicious
	default:
		return VerdictSafe
	}
}
