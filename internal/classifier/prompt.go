package classifier

import (
	"fmt"
)

// categoryPromptTemplate asks for exactly the seven category fields and a
// bare JSON object with no surrounding text.
const categoryPromptTemplate = `Classify the following email body into the following categories:
1. Purpose: [Personal, Work, Transactional, Promotional, Newsletter, Notification, Spam]
2. Sender Type: [Human, Automated, Company]
3. Content Type: [Text-only, Media-rich, Interactive]
4. Priority: [Urgent, High, Normal, Low]
5. Action Required: [Immediate Action, Follow-up Needed, Read Later, Informational Only]
6. Topic/Department: [HR, IT, Finance, Support, Marketing, Project Update, etc.]
7. Time Sensitivity: [Time-sensitive, Evergreen]

Email Body:
%s

Respond with ONLY a JSON object in exactly this structure and nothing else:

{
  "purpose": "...",
  "senderType": "...",
  "contentType": "...",
  "priority": "...",
  "actionRequired": "...",
  "topicDepartment": "...",
  "timeSensitivity": "..."
}

If a category does not apply, leave its value blank. Do not include any
reasoning, markdown or text outside the JSON object.`

// BuildCategoryPrompt formats the fixed classification request for a body
func BuildCategoryPrompt(body string) string {
	return fmt.Sprintf(categoryPromptTemplate, body)
}
