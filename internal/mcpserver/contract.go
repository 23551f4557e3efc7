package mcpserver

// NoteSchemaURI is the resource URI under which NoteSchema is published.
const NoteSchemaURI = "quill://note-schema"

// NoteSchema describes the note record as returned and accepted by the tools.
const NoteSchema = `# Quill Note Schema

A note is a JSON object:

` + "```" + `json
{
  "id": "0c5e2b7a-4f57-4c7e-9a4c-2f3c1d8e9b10",
  "title": "Groceries",
  "content": "milk, eggs",
  "createdAt": "2025-01-15T09:30:00Z",
  "lastModified": "2025-01-15T10:02:11Z",
  "isPinned": false,
  "hasImage": false
}
` + "```" + `

## Rules

1. **id** is assigned by Quill on creation and never changes. Use it to address
   the note in every other tool.
2. **title** and **content** are required and must not be empty. A create or
   update with an empty field is rejected and nothing is stored.
3. **createdAt** is set once. **lastModified** is refreshed on every update.
4. **isPinned** is changed only through ` + "`" + `toggle_pin` + "`" + `. Pinned notes are listed
   before unpinned ones; within each group the newest note comes first.
5. **hasImage** reports whether an image is attached. Attach one with
   ` + "`" + `attach_image` + "`" + ` (png, jpeg, gif or webp, at most 20 MB).
6. Search is a case-insensitive substring match on title or content.
`
