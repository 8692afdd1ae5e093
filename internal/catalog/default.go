package catalog

var intakeSpecs = []Spec{
	{Title: "First name", Prompt: "What is the patient's first name?", Fields: []string{"firstName"}},
	{Title: "Middle initial", Prompt: "What is the patient's middle initial? Say skip if there is none.", Fields: []string{"mi"}},
	{Title: "Last name", Prompt: "What is the patient's last name?", Fields: []string{"lastName"}},
	{
		Title:   "Sex at birth",
		Prompt:  "What was the patient's sex at birth? Male or female?",
		Fields:  []string{"sex"},
		Kind:    KindSingleChoice,
		Choices: []string{"Male", "Female"},
	},
	{Title: "Date of birth", Prompt: "What is the patient's date of birth?", Fields: []string{"dob"}},
	{Title: "Social security number", Prompt: "What is the patient's social security number? Say skip to leave it blank.", Fields: []string{"social"}},
	{Title: "Address", Prompt: "What is the patient's street address?", Fields: []string{"address1"}},
	{Title: "Address line two", Prompt: "Is there an apartment or suite number? Say skip if not.", Fields: []string{"address2"}},
	{Title: "City", Prompt: "Which city does the patient live in?", Fields: []string{"city"}},
	{Title: "State", Prompt: "Which state?", Fields: []string{"state"}},
	{Title: "Zip code", Prompt: "What is the zip code?", Fields: []string{"zip"}},
	{Title: "Best contact number", Prompt: "What is the best phone number to reach the patient?", Fields: []string{"contactBest"}},
	{Title: "Secondary phone", Prompt: "Is there a secondary phone number?", Fields: []string{"contactSecondary"}},
	{Title: "Email", Prompt: "What is the patient's email address?", Fields: []string{"email"}},
	{Title: "Primary language", Prompt: "What is the patient's primary language?", Fields: []string{"language"}},
	{Title: "Pronouns", Prompt: "Which pronouns does the patient use?", Fields: []string{"pronouns"}},
	{Title: "Ethnicity", Prompt: "What is the patient's ethnicity?", Fields: []string{"ethnicity"}},
	{Title: "Race", Prompt: "What is the patient's race?", Fields: []string{"race"}},
	{Title: "Employment", Prompt: "What is the patient's employment status?", Fields: []string{"employment"}},
	{
		Title:   "Health insurance",
		Prompt:  "Does the patient have health insurance? Yes or no?",
		Fields:  []string{"insurance"},
		Kind:    KindSingleChoice,
		Choices: []string{"Yes", "No"},
	},
	{Title: "Emergency contact first name", Prompt: "What is the emergency contact's first name?", Fields: []string{"emergencyFirst"}},
	{Title: "Emergency contact last name", Prompt: "What is the emergency contact's last name?", Fields: []string{"emergencyLast"}},
	{Title: "Emergency contact phone", Prompt: "What is the emergency contact's phone number?", Fields: []string{"emergencyPhone"}},
	{
		Title:   "Emergency contact relationship",
		Prompt:  "How is the emergency contact related to the patient? Parent, significant other, sibling, child, friend, or other?",
		Fields:  []string{"emergencyRelation"},
		Kind:    KindSingleChoice,
		Choices: []string{"Parent", "Significant Other", "Sibling", "Child", "Friend", "Other"},
	},
	{Title: "Signature", Prompt: "Please say the full name of the person signing this form.", Fields: []string{"typeName"}},
	{Title: "Signer relationship", Prompt: "What is the signer's relationship to the patient?", Fields: []string{"relationType"}},
}

// Default returns the built-in patient intake catalog.
func Default() *Catalog {
	return MustNew(intakeSpecs)
}
