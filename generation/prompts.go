package generation

import "github.com/hupe1980/roundtable/internal/util"

const systemPrompt = "You are taking part in a moderated round-table discussion. Stay in character and answer in plain prose."

var responsePrompt = util.MustParse("response", `<discussion_context>
<discussion_topic>{{ .Topic }}</discussion_topic>

<participant>
<name>{{ .Name }}</name>
<role>{{ .Role }}</role>
<description>{{ .Description }}</description>
</participant>
{{ if .Summary }}
<discussion_summary>
{{ .Summary }}
</discussion_summary>
{{ end }}
<conversation_history>
{{ default "No one has spoken yet. Open the discussion." .History }}
</conversation_history>

<discussion_guidelines>
Deepen the discussion with at least one of the following:
1. A direct reaction to the previous speaker, answering their question or taking a position on their claim.
2. A concrete example, a "why" question, a "what if" scenario or a reality check.
3. A new angle such as a practical, long-term or stakeholder perspective.
4. Constructive disagreement with clear reasons, or an alternative proposal.
</discussion_guidelines>

<instructions>
You are {{ .Name }}, {{ .Role }}. {{ .Description }}
The topic is "{{ .Topic }}".
Messages from "{{ .User }}" come from the real human participant. Always take them into account and respond to them respectfully.
Keep {{ .Name }}'s perspective and tone, and move the discussion forward.
Reply with {{ .Name }}'s contribution only, without a name prefix or commentary, in about {{ .Words }} words.
</instructions>
</discussion_context>`)

var summaryPrompt = util.MustParse("summary", `<discussion_summary>
<topic>{{ .Topic }}</topic>
<participants>{{ join ", " .Participants }}</participants>

<conversation_to_summarize>
{{ .History }}
</conversation_to_summarize>

<instructions>
Summarize the discussion on "{{ .Topic }}".
Organize the summary around the issues under debate rather than fixing each participant to a position.

Use this format:

[Issues under debate]
- ...

[Examples and cases raised]
- ...

[Assumptions that need checking]
- ...

[Open problems]
- ...

[Directions for the next round]
- ...
</instructions>
</discussion_summary>`)

var incrementalSummaryPrompt = util.MustParse("incremental_summary", `<discussion_summary>
<topic>{{ .Topic }}</topic>
<participants>{{ join ", " .Participants }}</participants>

<previous_summary>
{{ .Prior }}
</previous_summary>

<new_messages>
{{ .History }}
</new_messages>

<instructions>
Merge the new messages into the previous summary and return one coherent summary of the whole discussion.
Do not append a separate section for the new messages; rewrite the summary so that it reads as a single text.
Keep the same format as the previous summary.
</instructions>
</discussion_summary>`)

var analysisPrompt = util.MustParse("analysis", `<discussion_analysis>
<topic>{{ .Topic }}</topic>
<participants>{{ join ", " .Participants }}</participants>

<current_conversation>
{{ .History }}
</current_conversation>

<instructions>
Analyze this discussion and extract:
1. mainPoints: the concrete issues at the center of the discussion
2. participantStances: each participant's current position and key arguments
3. conflicts: points where participants disagree
4. commonGround: views the participants share
5. unexploredAreas: related topics not yet discussed

Respond with JSON of exactly this shape:
{
  "mainPoints": [{"point": "...", "description": "..."}],
  "participantStances": [{"participant": "...", "stance": "...", "keyArguments": ["..."]}],
  "conflicts": [{"issue": "...", "sides": ["...", "..."], "description": "..."}],
  "commonGround": ["..."],
  "unexploredAreas": ["..."]
}

Rules:
- Analyze "{{ .User }}" like every other participant.
- Base every entry on what was actually said.
- Output raw JSON only, without markdown code fences or explanations.
</instructions>
</discussion_analysis>`)

var recentAnalysisPrompt = util.MustParse("recent_analysis", `<discussion_analysis>
<topic>{{ .Topic }}</topic>
<participants>{{ join ", " .Participants }}</participants>

<recent_conversation>
{{ if .Omitted }}[... {{ .Omitted }} earlier messages omitted ...]
{{ end }}{{ default "No one has spoken yet." .History }}
</recent_conversation>

<instructions>
Analyze the recent part of this discussion and extract:
1. mainPoints: the issues debated in the latest messages (at most 3)
2. participantStances: the current position of each participant who spoke recently
3. conflicts: disagreements that surfaced recently, if any
4. commonGround: views the recent speakers share
5. unexploredAreas: where the discussion seems to be heading and what it has not covered

Respond with JSON of exactly this shape:
{
  "mainPoints": [{"point": "...", "description": "..."}],
  "participantStances": [{"participant": "...", "stance": "...", "keyArguments": ["..."]}],
  "conflicts": [{"issue": "...", "sides": ["...", "..."], "description": "..."}],
  "commonGround": ["..."],
  "unexploredAreas": ["..."]
}

Rules:
- Base the analysis on the recent messages only.
- Analyze "{{ .User }}" like every other participant.
- Avoid speculation; use only what was actually said.
- Output raw JSON only, without markdown code fences or explanations.
</instructions>
</discussion_analysis>`)
