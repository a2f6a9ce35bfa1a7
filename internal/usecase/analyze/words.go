package analyze

// stopWords covers English function words plus common Korean particles and
// boilerplate. Deployment-specific terms go through the exclude list instead.
var stopWords = map[string]struct{}{
	// English
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {},
	"to": {}, "of": {}, "in": {}, "for": {}, "on": {}, "with": {}, "at": {},
	"by": {}, "from": {}, "as": {}, "into": {}, "about": {}, "between": {},
	"and": {}, "or": {}, "but": {}, "if": {}, "then": {}, "than": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {}, "its": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "how": {}, "why": {},
	"when": {}, "where": {}, "there": {}, "here": {}, "please": {},
	"tell": {}, "me": {}, "my": {}, "you": {}, "your": {}, "we": {}, "our": {},

	// Korean particles and boilerplate
	"은": {}, "는": {}, "이": {}, "가": {}, "을": {}, "를": {}, "에": {},
	"의": {}, "와": {}, "과": {}, "로": {}, "으로": {}, "에서": {}, "에게": {},
	"한테": {}, "부터": {}, "까지": {}, "대해": {}, "대한": {}, "관한": {},
	"관련": {}, "무엇": {}, "뭐": {}, "어떤": {}, "어떻게": {}, "왜": {},
	"있나요": {}, "인가요": {}, "합니다": {}, "했습니다": {}, "해주세요": {},
	"알려줘": {}, "알려주세요": {}, "궁금합니다": {},
}

// compoundSplits maps known compound terms to their parts so a query for the
// compound also matches chunks mentioning only a part.
var compoundSplits = map[string][]string{
	"helpdesk":        {"help", "desk"},
	"troubleshoot":    {"trouble", "shoot"},
	"troubleshooting": {"trouble", "shooting"},
	"walkthrough":     {"walk", "through"},
	"workflow":        {"work", "flow"},
	"database":        {"data", "base"},
	"로그인":             {"로그", "인"},
	"업무절차":            {"업무", "절차"},
	"계정관리":            {"계정", "관리"},
}

// synonyms is a deliberately small expansion table; recall help, not a thesaurus.
var synonyms = map[string][]string{
	"error":   {"failure", "fault"},
	"fix":     {"resolve", "repair"},
	"setup":   {"install", "configure"},
	"delete":  {"remove"},
	"guide":   {"manual"},
	"price":   {"cost"},
	"방법":      {"절차"},
	"오류":      {"에러", "장애"},
	"설치":      {"세팅"},
}

// Intent markers checked in order: procedure beats question beats information.
var (
	procedureMarkers = []string{
		"how to", "how do i", "steps", "step by step", "guide", "tutorial",
		"procedure", "방법", "절차", "하는 법", "하려면",
	}
	questionMarkers = []string{
		"what", "who", "when", "where", "why", "how", "which",
		"무엇", "뭐", "누구", "언제", "어디", "왜", "어떻게", "인가요", "있나요", "습니까",
	}
	informationMarkers = []string{
		"information", "define", "definition", "describe", "overview",
		"explain", "정보", "설명", "개요", "정의",
	}
)
