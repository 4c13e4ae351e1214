package sentiment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

type lexEntry struct {
	polarity     float64
	subjectivity float64
}

// lexicon holds polarity and subjectivity per word, on the scale used by
// pattern/TextBlob.
var lexicon = map[string]lexEntry{
	"good": {0.7, 0.6}, "great": {0.8, 0.75}, "excellent": {1.0, 1.0}, "amazing": {0.6, 0.9},
	"best": {1.0, 0.3}, "better": {0.5, 0.5}, "positive": {0.23, 0.54}, "strong": {0.43, 0.73},
	"success": {0.3, 0.3}, "successful": {0.75, 0.95}, "win": {0.8, 0.4}, "wins": {0.8, 0.4},
	"gain": {0.4, 0.4}, "gains": {0.4, 0.4}, "growth": {0.3, 0.3}, "record": {0.2, 0.2},
	"breakthrough": {0.7, 0.6}, "improve": {0.4, 0.4}, "improved": {0.4, 0.4}, "boost": {0.4, 0.4},
	"surge": {0.4, 0.4}, "soar": {0.5, 0.5}, "soars": {0.5, 0.5}, "rally": {0.4, 0.4},
	"rallies": {0.4, 0.4}, "happy": {0.8, 1.0}, "hope": {0.3, 0.5}, "hopeful": {0.5, 0.7},
	"safe": {0.5, 0.5}, "secure": {0.4, 0.4}, "celebrate": {0.6, 0.6}, "award": {0.5, 0.3},
	"innovative": {0.5, 0.6}, "love": {0.5, 0.6}, "nice": {0.6, 1.0}, "wonderful": {1.0, 1.0},
	"recovery": {0.3, 0.4}, "optimistic": {0.5, 0.7}, "approve": {0.3, 0.4}, "approved": {0.3, 0.4},

	"bad": {-0.7, 0.67}, "worse": {-0.4, 0.6}, "worst": {-1.0, 1.0}, "terrible": {-1.0, 1.0},
	"awful": {-1.0, 1.0}, "poor": {-0.4, 0.6}, "negative": {-0.3, 0.4}, "weak": {-0.38, 0.63},
	"fail": {-0.5, 0.3}, "fails": {-0.5, 0.3}, "failure": {-0.32, 0.3}, "loss": {-0.4, 0.3},
	"losses": {-0.4, 0.3}, "lose": {-0.4, 0.3}, "crisis": {-0.5, 0.5}, "crash": {-0.6, 0.5},
	"collapse": {-0.6, 0.5}, "decline": {-0.3, 0.3}, "drop": {-0.2, 0.2}, "drops": {-0.2, 0.2},
	"fall": {-0.2, 0.2}, "falls": {-0.2, 0.2}, "plunge": {-0.5, 0.4}, "plunges": {-0.5, 0.4},
	"fear": {-0.5, 0.6}, "fears": {-0.5, 0.6}, "risk": {-0.2, 0.4}, "threat": {-0.4, 0.5},
	"war": {-0.6, 0.4}, "attack": {-0.6, 0.4}, "killed": {-0.8, 0.4}, "death": {-0.7, 0.4},
	"dead": {-0.2, 0.4}, "disaster": {-0.8, 0.6}, "storm": {-0.3, 0.3}, "scandal": {-0.6, 0.6},
	"sad": {-0.5, 1.0}, "angry": {-0.5, 1.0}, "warning": {-0.3, 0.4}, "delay": {-0.2, 0.3},
	"delayed": {-0.2, 0.3}, "lawsuit": {-0.3, 0.3}, "fraud": {-0.7, 0.6}, "layoffs": {-0.5, 0.4},
	"recession": {-0.6, 0.5}, "wrong": {-0.5, 0.9}, "problem": {-0.3, 0.4}, "concern": {-0.2, 0.4},
	"concerns": {-0.2, 0.4}, "violence": {-0.7, 0.5}, "outbreak": {-0.5, 0.4},
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "n't": true, "without": true, "nor": true,
}

var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "highly": 1.3, "really": 1.2, "so": 1.2,
	"slightly": 0.5, "somewhat": 0.7, "barely": 0.4, "most": 1.3, "more": 1.1,
}

var emotionWords = map[string][]string{
	"joy":      {"happy", "celebrate", "win", "wins", "love", "wonderful", "joy", "delight", "record", "success"},
	"sadness":  {"sad", "death", "dead", "mourn", "loss", "losses", "grief", "tragedy", "killed"},
	"anger":    {"angry", "outrage", "protest", "fury", "slams", "scandal", "fraud", "furious"},
	"fear":     {"fear", "fears", "threat", "warning", "risk", "panic", "crisis", "outbreak", "war"},
	"surprise": {"surprise", "surprising", "unexpected", "shock", "shocking", "sudden", "stuns"},
	"disgust":  {"disgust", "disgusting", "corrupt", "corruption", "vile", "abuse"},
}

var categoryWords = map[string][]string{
	"Technology":    {"ai", "tech", "software", "chip", "chips", "apple", "google", "microsoft", "startup", "app", "cyber", "robot", "computer", "internet", "smartphone"},
	"Business":      {"market", "markets", "stock", "stocks", "shares", "economy", "earnings", "company", "bank", "trade", "investors", "revenue", "profit", "inflation"},
	"Politics":      {"election", "president", "government", "senate", "congress", "minister", "vote", "policy", "law", "parliament", "campaign", "court"},
	"Health":        {"health", "hospital", "vaccine", "disease", "covid", "cancer", "doctors", "medical", "drug", "patients", "outbreak"},
	"Sports":        {"game", "match", "team", "league", "cup", "coach", "season", "player", "championship", "score", "olympics"},
	"Entertainment": {"film", "movie", "music", "album", "star", "celebrity", "show", "tv", "series", "festival", "actor"},
	"Science":       {"science", "research", "study", "space", "nasa", "scientists", "discovery", "physics", "planet"},
	"Environment":   {"climate", "weather", "storm", "emissions", "wildfire", "flood", "environment", "pollution", "energy", "carbon"},
	"Education":     {"school", "schools", "university", "students", "teachers", "education", "college", "exam"},
	"Travel":        {"travel", "flight", "flights", "airline", "tourism", "airport", "hotel", "tourists"},
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "with": true, "at": true, "by": true, "from": true, "as": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "after": true, "over": true, "into": true,
	"has": true, "have": true, "had": true, "will": true, "would": true, "can": true, "could": true,
	"new": true, "says": true, "said": true, "amid": true, "about": true, "than": true, "more": true,
	"up": true, "out": true, "his": true, "her": true, "their": true, "they": true, "we": true, "you": true,
}

// LexiconAnalyzer scores text with a built-in word lexicon. Negations flip
// and halve the next sentiment word; intensifiers scale it.
type LexiconAnalyzer struct{}

func NewLexiconAnalyzer() *LexiconAnalyzer { return &LexiconAnalyzer{} }

func (LexiconAnalyzer) Name() string { return "lexicon" }

func (a LexiconAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	text := in.Text()
	tokens := tokenize(text)

	var (
		polSum, subSum float64
		matched        int
		negate         bool
		scale          = 1.0
	)
	for _, tok := range tokens {
		if negations[tok] {
			negate = true
			continue
		}
		if m, ok := intensifiers[tok]; ok {
			scale *= m
			continue
		}
		entry, ok := lexicon[tok]
		if !ok {
			if !stopWords[tok] {
				negate, scale = false, 1.0
			}
			continue
		}
		p := entry.polarity * scale
		if negate {
			p *= -0.5
		}
		polSum += clamp(p, -1, 1)
		subSum += clamp(entry.subjectivity*scale, 0, 1)
		matched++
		negate, scale = false, 1.0
	}

	r := Result{
		Emotion:  "neutral",
		Category: "Other",
		Analyzer: a.Name(),
		Summary:  summarize(in),
	}
	if matched > 0 {
		r.Polarity = clamp(polSum/float64(matched), -1, 1)
		r.Subjectivity = clamp(subSum/float64(matched), 0, 1)
	}
	r.Confidence = clamp(0.3+0.15*float64(matched), 0, 0.9)
	r.Emotion = dominant(tokens, emotionWords, Emotions, "neutral")

	counts := matchCounts(tokens, categoryWords)
	r.Categories = ranked(counts, Categories)
	if len(r.Categories) > 0 {
		r.Category = r.Categories[0]
		r.CategoryConfidence = clamp(0.4+0.15*float64(counts[r.Category]), 0, 0.9)
	} else {
		r.Categories = []string{"Other"}
		r.CategoryConfidence = 0.3
	}
	r.Topics = []string{}
	r.Keywords = keywords(tokens, 10)
	r.Entities = entities(in.Title)
	r.Reasoning = fmt.Sprintf("lexicon matched %d sentiment words in %d tokens", matched, len(tokens))
	return r, nil
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "’", "'")
	var tokens []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		field = strings.Trim(field, "'")
		if field == "" {
			continue
		}
		if strings.HasSuffix(field, "n't") {
			if stem := strings.TrimSuffix(field, "n't"); stem != "" {
				tokens = append(tokens, stem)
			}
			tokens = append(tokens, "n't")
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

func matchCounts(tokens []string, groups map[string][]string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokens {
		for name, words := range groups {
			if contains(words, tok) {
				counts[name]++
			}
		}
	}
	return counts
}

// ranked orders the names with a positive count by count, then by their
// position in order.
func ranked(counts map[string]int, order []string) []string {
	var out []string
	for _, name := range order {
		if counts[name] > 0 {
			out = append(out, name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return counts[out[i]] > counts[out[j]] })
	return out
}

func dominant(tokens []string, groups map[string][]string, order []string, fallback string) string {
	if names := ranked(matchCounts(tokens, groups), order); len(names) > 0 {
		return names[0]
	}
	return fallback
}

func keywords(tokens []string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokens {
		if len(tok) < 3 || stopWords[tok] || negations[tok] {
			continue
		}
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	if order == nil {
		return []string{}
	}
	return order
}

// entities returns capitalized words of title other than its first word.
func entities(title string) []string {
	out := []string{}
	for i, word := range strings.Fields(title) {
		word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if i == 0 || word == "" || stopWords[strings.ToLower(word)] {
			continue
		}
		if first := []rune(word)[0]; unicode.IsUpper(first) && !contains(out, word) {
			out = append(out, word)
		}
	}
	return out
}

func summarize(in Input) string {
	text := in.Title
	if text == "" {
		text = in.Content
	}
	return truncate(strings.TrimSpace(text), 200)
}
