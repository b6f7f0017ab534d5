package mcpserver

// ProjectGuide explains to LLM consumers how the editor interprets the files
// they create, so generated projects preview correctly.
const ProjectGuide = `# Livepad Project Guide

A livepad project is a tree of folders and text files. Exactly one file is
active; the preview always shows the active file.

## File kinds

| kind | extension | preview |
|------|-----------|---------|
| html | .html | the page itself, with every css file injected as <style> and every js file as <script> |
| css  | .css  | the stylesheet applied to a built-in sample page |
| js   | .js   | the script run on a blank page; console output is captured |
| md   | .md   | rendered Markdown with KaTeX math, Mermaid diagrams and highlighted code |
| json | .json | escaped source text |
| txt  | .txt  | escaped source text |

The extension always matches the kind. Names without it get it appended.

## Rules

1. **Folders are organisational only.** Every css and js file in the project
   is injected into an html preview, wherever it lives and in creation order.
2. **Do not link project files** with <link href> or <script src>; they are
   injected automatically.
3. **Console output** from log, info, warn and error calls is captured from
   the preview and readable with the read_console tool. Uncaught errors are
   captured as error messages with line and column.
4. **Math** in Markdown uses $inline$ and $$display$$ delimiters.
5. **Mermaid** diagrams use fenced code blocks with the mermaid language.
6. **Encoding** is UTF-8 text. Binary files cannot be imported.

## Example

Create index.html with a <button id="go">, styles.css with a rule for #go and
script.js adding a click handler that calls console.log. Set index.html
active, call compose_preview, then read_console after interacting.
`
