package i18n

// Supported languages
const (
	LangEN = "en"
	LangBN = "bn"
)

// DefaultLanguage is the fallback language
const DefaultLanguage = LangEN

// LanguageNames maps language codes to their display names
var LanguageNames = map[string]string{
	LangEN: "English",
	LangBN: "বাংলা",
}

// Supported lists UI languages in menu order.
var Supported = []string{LangEN, LangBN}

// Translations holds all translations
type Translations map[string]map[string]string

// Get returns a translation for a given language and key
func Get(lang, key string) string {
	if trans, ok := translations[lang]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	// Fallback to English
	if trans, ok := translations[DefaultLanguage]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	return key
}

var translations = Translations{
	LangEN: {
		"app_name":          "TTS Evaluation",
		"sheets":            "Sheets",
		"item":              "Item",
		"text":              "Text",
		"status":            "Status",
		"open":              "Open",
		"Pending":           "Pending",
		"Annotated":         "Annotated",
		"progress":          "annotated",
		"previous":          "Previous",
		"next":              "Next",
		"back_to_list":      "Back to list",
		"save":              "Save",
		"save_next":         "Save & next",
		"saved":             "Saved",
		"save_failed":       "Save failed",
		"audio":             "Audio",
		"no_audio":          "No audio generated for this item yet.",
		"duration":          "Duration",
		"seconds":           "s",
		"peer_annotation":   "Peer voice rating",
		"no_peer":           "No peer rating yet.",
		"naturalness":       "Naturalness: does it sound robotic or human?",
		"intelligibility":   "Intelligibility: can you understand every word clearly?",
		"context":           "Context: did it get the question/sarcasm tone right?",
		"incorrect_words":   "Incorrect words",
		"number_mistakes":   "Mistakes reading numbers",
		"conjunct_mistakes": "Issues reading conjuncts",
		"notes":             "Notes",
		"preference":        "Preference",
		"help":              "Help",
		"language":          "Language",
		"help_intro":        "Listen to each clip, rate it, and save. Items turn green once a rating is stored; you can revisit and overwrite a rating at any time.",
		"help_scale":        "Scales run from 1 (poor) to 5 (excellent).",
		"help_peer":         "When the opposite voice already has a rating for the same sentence it is shown beside the form for comparison.",
		"help_keys":         "Keyboard: Ctrl+Enter saves and moves to the next item.",
	},
	LangBN: {
		"app_name":          "টিটিএস মূল্যায়ন",
		"sheets":            "শিট",
		"item":              "আইটেম",
		"text":              "লেখা",
		"status":            "অবস্থা",
		"open":              "খুলুন",
		"Pending":           "বাকি",
		"Annotated":         "সম্পন্ন",
		"progress":          "সম্পন্ন",
		"previous":          "আগের",
		"next":              "পরের",
		"back_to_list":      "তালিকায় ফিরুন",
		"save":              "সংরক্ষণ",
		"save_next":         "সংরক্ষণ ও পরের",
		"saved":             "সংরক্ষিত",
		"save_failed":       "সংরক্ষণ ব্যর্থ",
		"audio":             "অডিও",
		"no_audio":          "এই আইটেমের অডিও এখনও তৈরি হয়নি।",
		"duration":          "দৈর্ঘ্য",
		"seconds":           "সে",
		"peer_annotation":   "অন্য কণ্ঠের মূল্যায়ন",
		"no_peer":           "এখনও কোনো মূল্যায়ন নেই।",
		"naturalness":       "স্বাভাবিকতা: যান্ত্রিক না মানুষের মতো?",
		"intelligibility":   "বোধগম্যতা: প্রতিটি শব্দ কি স্পষ্ট বোঝা যায়?",
		"context":           "প্রসঙ্গ: প্রশ্ন/ব্যঙ্গের সুর কি ঠিক ছিল?",
		"incorrect_words":   "ভুল শব্দ",
		"number_mistakes":   "সংখ্যা (সংখ্যা পড়ায় ভুল)",
		"conjunct_mistakes": "যুক্তাক্ষর (পড়ায় সমস্যা)",
		"notes":             "মন্তব্য",
		"preference":        "পছন্দ",
		"help":              "সাহায্য",
		"language":          "ভাষা",
		"help_intro":        "প্রতিটি ক্লিপ শুনুন, মূল্যায়ন দিন এবং সংরক্ষণ করুন। সংরক্ষিত আইটেম সবুজ হয়ে যায়; যেকোনো সময় আবার খুলে পরিবর্তন করা যায়।",
		"help_scale":        "মান ১ (খারাপ) থেকে ৫ (চমৎকার)।",
		"help_peer":         "একই বাক্যের অন্য কণ্ঠের মূল্যায়ন থাকলে তুলনার জন্য পাশে দেখানো হয়।",
		"help_keys":         "কীবোর্ড: Ctrl+Enter চাপলে সংরক্ষণ হয়ে পরের আইটেমে যাবে।",
	},
}
