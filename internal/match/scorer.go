package match

import (
	"strings"

	"reclink/internal/identity"
	"reclink/internal/record"
	"reclink/pkg/email"
	strutil "reclink/pkg/platform/strings"
)

// Additive scoring weights. Exact email dominates: it alone clears the
// self-service threshold, so an email match never needs corroboration.
const (
	weightEmailExact      = 100
	weightNameHigh        = 70
	weightNameMedium      = 50
	weightPhoneExact      = 60
	weightPhoneInLocation = 40
	weightSharedKeyword   = 20
)

// Name-similarity thresholds on the pairwise character-overlap ratio. The
// ratio tops out at 0.5 for identical tokens (shared chars over combined
// length), so these sit well below that ceiling.
const (
	nameSimilarityHigh   = 0.45
	nameSimilarityMedium = 0.35
)

// Criteria labels reported on candidates so the claim UI can explain a match.
const (
	CriterionEmailExact      = "email_exact"
	CriterionNameHigh        = "name_similarity_high"
	CriterionNameMedium      = "name_similarity_medium"
	CriterionPhoneExact      = "phone_exact"
	CriterionPhoneInLocation = "phone_in_location"
	CriterionSharedKeywords  = "shared_keywords"
)

// Score is a scorer outcome: a clipped confidence plus the criteria that
// contributed to it.
type Score struct {
	Confidence int
	Criteria   []string
}

// ScoreRecord computes the 0..100 confidence that a claimable record belongs
// to the identity. Pure and deterministic; never errors.
func ScoreRecord(ident identity.Identity, rec *record.Claimable) Score {
	var (
		total    int
		criteria []string
	)

	if email.Equal(ident.Email, rec.ContactEmail) {
		total += weightEmailExact
		criteria = append(criteria, CriterionEmailExact)
	}

	switch sim := nameSimilarity(ident.FullName, rec.Name); {
	case sim >= nameSimilarityHigh:
		total += weightNameHigh
		criteria = append(criteria, CriterionNameHigh)
	case sim >= nameSimilarityMedium:
		total += weightNameMedium
		criteria = append(criteria, CriterionNameMedium)
	}

	if phonesEqual(ident.Phone, rec.ContactPhone) {
		total += weightPhoneExact
		criteria = append(criteria, CriterionPhoneExact)
	}

	if phoneInLocation(ident.Phone, rec.Location) {
		total += weightPhoneInLocation
		criteria = append(criteria, CriterionPhoneInLocation)
	}

	if rec.Kind == record.KindParticipant {
		if shared := sharedKeywords(ident.FullName, rec.Skills, rec.Interests); shared > 0 {
			total += shared * weightSharedKeyword
			criteria = append(criteria, CriterionSharedKeywords)
		}
	}

	return Score{Confidence: clip(total), Criteria: criteria}
}

// ScoreSubmission scores a pending submission. Submissions carry no phone
// field and no keyword arrays, so only the email, submitter-name, and
// location heuristics apply.
func ScoreSubmission(ident identity.Identity, sub *record.Submission) Score {
	var (
		total    int
		criteria []string
	)

	if email.Equal(ident.Email, sub.ContactEmail) {
		total += weightEmailExact
		criteria = append(criteria, CriterionEmailExact)
	}

	switch sim := nameSimilarity(ident.FullName, sub.SubmittedBy); {
	case sim >= nameSimilarityHigh:
		total += weightNameHigh
		criteria = append(criteria, CriterionNameHigh)
	case sim >= nameSimilarityMedium:
		total += weightNameMedium
		criteria = append(criteria, CriterionNameMedium)
	}

	if phoneInLocation(ident.Phone, sub.Location) {
		total += weightPhoneInLocation
		criteria = append(criteria, CriterionPhoneInLocation)
	}

	return Score{Confidence: clip(total), Criteria: criteria}
}

// nameSimilarity matches each token of the first name against its best
// counterpart in the second and averages the overlap ratios. A coarse
// heuristic, deliberately not edit distance: identical names score 0.5, the
// overlapRatio ceiling.
func nameSimilarity(a, b string) float64 {
	tokensA := strutil.Tokens(a)
	tokensB := strutil.Tokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var sum float64
	for _, ta := range tokensA {
		var best float64
		for _, tb := range tokensB {
			if r := overlapRatio(ta, tb); r > best {
				best = r
			}
		}
		sum += best
	}
	return sum / float64(len(tokensA))
}

// overlapRatio counts characters common to both tokens (multiset
// intersection) over their combined length. Identical tokens score 0.5.
func overlapRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var counts [256]int
	for i := 0; i < len(a); i++ {
		counts[a[i]]++
	}
	shared := 0
	for i := 0; i < len(b); i++ {
		if counts[b[i]] > 0 {
			counts[b[i]]--
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b))
}

func phonesEqual(a, b string) bool {
	da, db := strutil.DigitsOnly(a), strutil.DigitsOnly(b)
	return da != "" && da == db
}

// phoneInLocation is the legacy weak signal: the raw phone string appearing
// inside a free-text location field.
func phoneInLocation(phone, location string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" || location == "" {
		return false
	}
	return strings.Contains(location, phone)
}

// sharedKeywords counts identity name tokens that appear in the participant's
// skills or interests arrays.
func sharedKeywords(fullName string, skills, interests []string) int {
	nameTokens := strutil.Tokens(fullName)
	if len(nameTokens) == 0 {
		return 0
	}

	keywords := make(map[string]struct{})
	for _, kw := range strutil.DedupeAndTrimLower(skills) {
		keywords[kw] = struct{}{}
	}
	for _, kw := range strutil.DedupeAndTrimLower(interests) {
		keywords[kw] = struct{}{}
	}

	shared := 0
	for _, tok := range nameTokens {
		if _, ok := keywords[tok]; ok {
			shared++
		}
	}
	return shared
}

func clip(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
