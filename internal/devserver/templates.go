package devserver

import "strings"

type template struct {
	stack      []string
	dockerfile string
}

// templates are matched in order against the lower-cased repository URL.
var templates = []struct {
	keywords []string
	template template
}{
	{
		keywords: []string{"next", "react", "node", "express", "js"},
		template: template{
			stack: []string{"Node.js", "npm"},
			dockerfile: `FROM node:20-alpine
WORKDIR /app
COPY package*.json ./
RUN npm ci --omit=dev
COPY . .
EXPOSE 3000
CMD ["npm", "start"]
`,
		},
	},
	{
		keywords: []string{"django", "flask", "fastapi", "py"},
		template: template{
			stack: []string{"Python", "pip"},
			dockerfile: `FROM python:3.12-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE 8000
CMD ["python", "main.py"]
`,
		},
	},
	{
		keywords: []string{"go"},
		template: template{
			stack: []string{"Go"},
			dockerfile: `FROM golang:1.23 AS build
WORKDIR /src
COPY go.mod go.sum ./
RUN go mod download
COPY . .
RUN CGO_ENABLED=0 go build -o /out/app .

FROM gcr.io/distroless/static
COPY --from=build /out/app /app
ENTRYPOINT ["/app"]
`,
		},
	},
}

var fallbackTemplate = template{
	stack: []string{"Static"},
	dockerfile: `FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE 80
`,
}

func templateFor(repoURL string) template {
	name := strings.ToLower(repoURL)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, t := range templates {
		for _, kw := range t.keywords {
			if strings.Contains(name, kw) {
				return t.template
			}
		}
	}
	return fallbackTemplate
}
