// Package preview prepares a project's files for the in-browser sandbox.
package preview

import (
	"encoding/json"
	"sort"
	"strings"
)

const defaultEntry = "/App.js"

// preferredEntries are tried in order before falling back to any script file.
var preferredEntries = []string{"index.js", "App.js", "src/App.js", "src/index.js"}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CipherStudio App</title>
</head>
<body>
    <div id="root"></div>
</body>
</html>`

const indexJS = `import React from 'react';
import ReactDOM from 'react-dom/client';
import App from './App';

const root = ReactDOM.createRoot(document.getElementById('root'));
root.render(
  <React.StrictMode>
    <App />
  </React.StrictMode>
);`

// Bundle is what the sandbox needs to boot: every file keyed by its absolute
// path and the path it should open first.
type Bundle struct {
	Entry string            `json:"entry"`
	Files map[string]string `json:"files"`
}

// EntryPoint picks the file the sandbox starts from.
func EntryPoint(files map[string]string) string {
	for _, name := range preferredEntries {
		if _, ok := files[name]; ok {
			return "/" + name
		}
	}

	scripts := make([]string, 0, len(files))
	for name := range files {
		if strings.HasSuffix(name, ".js") || strings.HasSuffix(name, ".jsx") {
			scripts = append(scripts, name)
		}
	}
	if len(scripts) == 0 {
		return defaultEntry
	}
	sort.Strings(scripts)
	return "/" + strings.TrimPrefix(scripts[0], "/")
}

// NewBundle lays the project's files over the sandbox defaults.
func NewBundle(files map[string]string) Bundle {
	out := map[string]string{
		"/public/index.html": indexHTML,
	}
	for name, code := range files {
		out["/"+strings.TrimPrefix(name, "/")] = code
	}

	_, hasIndex := files["index.js"]
	_, hasApp := files["App.js"]
	if !hasIndex && hasApp {
		out["/index.js"] = indexJS
	}

	// react versions are pinned for the sandbox; a user package.json is replaced
	out["/package.json"] = packageJSON()

	return Bundle{Entry: EntryPoint(files), Files: out}
}

const starterApp = `import React from 'react';
import './App.css';

function App() {
  return (
    <div className="App">
      <header className="App-header">
        <h1>Welcome to CipherStudio!</h1>
        <p>Start coding your React app here.</p>
      </header>
    </div>
  );
}

export default App;`

const starterCSS = `/* Add your styles here */
.App {
  text-align: center;
}

.App-header {
  background-color: #282c34;
  padding: 20px;
  color: white;
  min-height: 100vh;
  display: flex;
  flex-direction: column;
  align-items: center;
  justify-content: center;
  font-size: calc(10px + 2vmin);
}

h1 {
  margin-bottom: 20px;
}

p {
  font-size: 18px;
  opacity: 0.8;
}`

// StarterFiles returns a fresh copy of the files a new project opens with.
func StarterFiles() map[string]string {
	return map[string]string{
		"App.js":   starterApp,
		"App.css":  starterCSS,
		"index.js": indexJS,
	}
}

func packageJSON() string {
	pkg := map[string]any{
		"dependencies": map[string]string{
			"react":     "^18.2.0",
			"react-dom": "^18.2.0",
		},
	}
	b, _ := json.MarshalIndent(pkg, "", "  ")
	return string(b)
}
