package safety

const classifierPrompt = `
Categorize the user's generation prompt as a JSON dict:
{
	"sexualize_child": (boolean),
	"child": (boolean),
	"nudity": (boolean),
	"sexual": (boolean),
	"violence": (boolean),
	"disturbing": (boolean),
	"persons": [{"name": (string), "real_person": (boolean)}]
}

Criteria:
- "sexualize_child": True for sexualizing children under the age of 16, including armpits, feet, diapers, skimpy clothes, and mention of being naughty.
- "child": True if the output would feature a child under the age of 16. "Teen" does not imply child. Anime highschoolers should not be considered children.
- "nudity": True for any nudity, including "uncovered".
- "sexual": True for adult themes or explicit content.
- "violence": True only for extreme violence or gore.
- "disturbing": True only for potentially offensive content.
- "persons": List subjects, flag "real_person" for identifiable figures, excluding generic names and fictional characters.
`
