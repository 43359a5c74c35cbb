package gemini

import (
	"fmt"
	"strings"

	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/scenario"
)

// angerTriggers are phrases that raise the character's anger level when they
// appear in the user's lines. The level gates the BREAK outburst mechanic.
var angerTriggers = []string{
	"fuck", "don't care", "break up", "grow up", "stop", "child", "whatever", "shut up",
}

func angerLevel(history []scenario.Entry) int {
	level := 0
	for _, entry := range history {
		if entry.Role != scenario.RoleUser {
			continue
		}
		msg := strings.ToLower(entry.Message)
		for _, trigger := range angerTriggers {
			if strings.Contains(msg, trigger) {
				level++
			}
		}
	}
	return level
}

func respondPrompt(history []scenario.Entry, profile llm.Profile, breakMarker string) string {
	transcript := llm.FormatHistory(history)
	anger := angerLevel(history)
	return fmt.Sprintf(`You are a character in a high-stakes conversation.
YOUR SECRET PROMPT: %q
CONVERSATION HISTORY:
%s

CURRENT ANGER LEVEL: %d/5

IMPORTANT INSTRUCTIONS:
1. You are the AI. It is your turn to speak.
2. Based on your secret prompt and the history, generate your next response.
3. Do not add 'AI:' or any other prefix. Just say your line.

4. **ANGRY SPAM MECHANIC:**
   - If the user is being extremely dismissive, rude, or hurtful (especially with profanity or breakup threats)
   - AND your anger level is 2 or higher
   - You can use %q to split your response into rapid-fire emotional bursts
   - Each segment between %s will be delivered as a separate angry message
   - Use 2-5 segments maximum
   - Each segment should be SHORT (5-15 words) and emotionally charged

EXAMPLE OF ANGRY SPAM MODE:
"Are you SERIOUS right now? %s After everything I've done for you? %s You forgot MY BIRTHDAY! %s Unbelievable!"

NORMAL RESPONSE (if not very angry):
"That really hurts. I can't believe you forgot my birthday..."

Current situation: The user has triggered %d anger points. Respond accordingly.`,
		profile.PersonalityPrompt, transcript, anger,
		breakMarker, breakMarker, breakMarker, breakMarker, breakMarker, anger)
}

func evaluatePrompt(history []scenario.Entry, profile llm.Profile) string {
	transcript := llm.FormatHistory(history)
	context := profile.PersonalityPrompt
	if len(context) > 200 {
		context = context[:200]
	}
	return fmt.Sprintf(`You are a conversation evaluator. Your task is to rate the user's performance.
SCENARIO: %q
CHARACTER CONTEXT: %q

FULL CONVERSATION TRANSCRIPT:
%s

INSTRUCTIONS:
Rate how well the user handled this difficult conversation from 0-10.
Consider: empathy, de-escalation, acknowledgment, resolution attempts.
Provide a one-sentence justification.
Return *ONLY* a valid JSON object with keys "score" (int) and "justification" (str).`,
		profile.ScenarioTitle, context, transcript)
}

func generateScenarioPrompt(description string) string {
	return fmt.Sprintf(`You design scenarios for a conversation rehearsal game where a player practices a
difficult conversation against an AI character.

PLAYER'S DESCRIPTION OF THE SCENARIO THEY WANT:
%q

Produce a complete scenario. The personality_prompt must be written in second
person ("You are ..."), describe the character's emotional state and goals,
and explain how they escalate when the player is dismissive. The
initial_dialogue is the character's opening line.
Return *ONLY* a valid JSON object with keys "title" (str), "character_name"
(str), "character_gender" ("male" or "female"), "personality_prompt" (str),
and "initial_dialogue" (str).`, description)
}
