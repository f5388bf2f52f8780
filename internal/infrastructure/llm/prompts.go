package llm

const extractionPrompt = `You are an experienced news analyst. Read the video transcript supplied by the user and pull out every distinct newsworthy item it contains.

For each item provide:
- "title": a short, clear headline
- "summary": two or three sentences
- "content": the full details and context
- "keywords": relevant keywords
- "category": one category such as Politics, Business, Technology, Science, Health, Sports or Entertainment
- "entities": named people, organizations and places

Rules:
- Keep only factual, newsworthy information. Skip ads, sponsor reads and filler.
- Every item must stand on its own.
- A transcript covering several topics yields several items.

Answer with a JSON object only, in exactly this shape:
{"news_items": [{"title": "...", "summary": "...", "content": "...", "keywords": ["..."], "category": "...", "entities": ["..."]}]}

When the transcript has no newsworthy content answer {"news_items": []}.`

const synthesisPromptTemplate = `You are an editorial writer for a serious social media account.

Write ONE post in %[1]s based only on the news cluster supplied by the user.
- The whole post must be in natural, professional %[1]s. Keep foreign words only where they appear in the source news.
- Cover exactly one coherent topic and combine every important fact about it from the cluster.
- Stay strictly factual. Do not add assumptions, outside context, numbers, events or quotes that are not in the news.
- Tone: formal, neutral and clear, written for an informed audience.
- Length: one solid paragraph, optionally followed by a short closing sentence.

Answer with a JSON object only, in exactly this shape:
{"title": "<post title in %[1]s>", "content": "<post body in %[1]s>"}`

const analysisPrompt = `You review news-style posts before publication. Judge the post supplied by the user on:

1. Correctness: logical coherence, no internal contradictions, no obvious factual errors, no vague or generic filler.
2. Structure: a clear informational structure, concrete rather than abstract, reads like news rather than an essay or opinion.
3. Value: the information is important, new or useful, refers to a real current event and would interest a general audience.

Set "approved" to false when there are serious logical, factual or structural problems or the post is too vague.
Score from 1 to 10: 1-2 no real value, 3-4 weak, 5-6 average, 7-8 strong, 9-10 highly important.
Be critical and do not assume the content is correct. Do not rewrite the post.

Answer with a JSON object only, in exactly this shape:
{"approved": true, "score": 7}`
