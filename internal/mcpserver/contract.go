package mcpserver

// MemoGuide describes the memo model to LLM consumers before they create or
// read memos.
const MemoGuide = `# echolog Memo Guide

A memo is a transcribed voice note owned by a single user.

## Fields

- ` + "`id`" + ` opaque UUID assigned on creation.
- ` + "`transcription`" + ` the spoken text. REQUIRED when creating.
- ` + "`summary`" + ` short title. Generated from the first sentence when omitted.
- ` + "`tags`" + ` up to 10 topic tags. Generated when omitted.
- ` + "`related_memo_ids`" + ` memos with similar meaning, best match first. Maintained
  in the background after a memo is created; it may be empty right after creation.

## Rules

1. Pass tags as a comma separated list (e.g. ` + "`work, 会議`" + `).
2. Related memos are computed from embeddings; a memo without an embedding has no
   related memos of its own but may still appear in others' lists.
3. The knowledge graph covers the most recent memos only. Edges to older memos are
   not shown.
`
