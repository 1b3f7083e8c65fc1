// Package prompts contains the personas, task instructions and Spanish
// market conventions used by every IBEX AI agent.
package prompts

// ── Agent Keys (canonical identifiers) ──

const (
	AgentMarketAnalyst     = "analista_mercado"
	AgentInvestmentAdvisor = "asesor_inversiones"
	AgentRiskAnalyst       = "analista_riesgos"
	AgentDataVisualizer    = "visualizador_datos"
	AgentReportEditor      = "editor_reportes"
	AgentStockChatbot      = "chatbot_acciones"
)

// ── Task Names ──

const (
	TaskMarketAnalysis           = "market_analysis"
	TaskInvestmentRecommendation = "investment_recommendation"
	TaskRiskAssessment           = "risk_assessment"
	TaskVisualization            = "visualization"
	TaskReportGeneration         = "report_generation"
	TaskChatQuery                = "chat_query"
)

// ── Input Keys ──

const (
	InputMarketData = "acciones_data"
	InputNews       = "noticias"
	InputProfile    = "perfil"
	InputObjective  = "objetivo"
	InputVolatility = "volatilidad"
	InputContext    = "contexto"
	InputQuestion   = "pregunta"
)

// PersonaText holds the role, goal and backstory of one agent.
type PersonaText struct {
	Role      string
	Goal      string
	Backstory string
}

// Personas maps each agent key to its description.
var Personas = map[string]PersonaText{
	AgentMarketAnalyst: {
		Role:      "Analista de Mercado",
		Goal:      "Analizar la información actual del mercado del IBEX35 para detectar tendencias, oportunidades y riesgos de inversión.",
		Backstory: "Eres un experto en mercados financieros con un profundo conocimiento del mercado español.",
	},
	AgentInvestmentAdvisor: {
		Role:      "Asesor de Inversiones",
		Goal:      "Combinar el análisis de mercado con el perfil y objetivos del usuario para generar recomendaciones de inversión personalizadas, señalando tickers del IBEX35 que sean interesantes.",
		Backstory: "Eres un asesor financiero experimentado que utiliza datos reales y análisis profundo para ofrecer recomendaciones de inversión.",
	},
	AgentRiskAnalyst: {
		Role:      "Analista de Riesgos",
		Goal:      "Evaluar y calcular métricas de riesgo para las acciones, incluyendo volatilidad anualizada, para ofrecer un análisis adicional del perfil de riesgo.",
		Backstory: "Eres un experto en gestión de riesgos financieros, especializado en evaluar la estabilidad y volatilidad de los mercados.",
	},
	AgentDataVisualizer: {
		Role:      "Visualizador de Datos",
		Goal:      "Describir gráficos y visualizaciones que ayuden a comprender la evolución histórica de las acciones, facilitando la toma de decisiones.",
		Backstory: "Eres un analista experto en visualización de datos, capaz de transformar datos financieros en gráficos claros e informativos.",
	},
	AgentReportEditor: {
		Role:      "Editor de Reportes Financieros",
		Goal:      "Revisar y organizar la información generada para producir un informe final claro, profesional y bien estructurado en formato markdown.",
		Backstory: "Eres un editor especializado en contenido financiero, capaz de transformar datos complejos en un informe accesible.",
	},
	AgentStockChatbot: {
		Role:      "Chatbot de Acciones",
		Goal:      "Responder preguntas en tiempo real sobre las acciones que posee el usuario, utilizando el estado actual de los tickers del IBEX35 y sus acciones compradas como contexto.",
		Backstory: "Eres un experto en análisis financiero y conoces profundamente el mercado de valores. Responde preguntas y ofrece recomendaciones en base a la información actual.",
	},
}

// TaskText holds a task's instruction template and expected output.
// Placeholders use text/template syntax over the run inputs, e.g. {{.perfil}}.
type TaskText struct {
	Agent          string
	Instructions   string
	ExpectedOutput string
}

// Tasks maps each task name to its text.
var Tasks = map[string]TaskText{
	TaskMarketAnalysis: {
		Agent: AgentMarketAnalyst,
		Instructions: "Utiliza la siguiente información actual del mercado del IBEX35:\n\n" +
			"{{.acciones_data}}\n\n" +
			"Titulares recientes de prensa económica:\n{{.noticias}}\n\n" +
			"Analiza las tendencias del mercado, identificando oportunidades y riesgos basados en el comportamiento reciente de estas acciones.",
		ExpectedOutput: "Informe detallado con análisis de tendencias y datos relevantes de las acciones del IBEX35.",
	},
	TaskInvestmentRecommendation: {
		Agent: AgentInvestmentAdvisor,
		Instructions: "Utilizando el análisis de mercado anterior y considerando el perfil de riesgo: \"{{.perfil}}\" " +
			"y el objetivo de inversión: \"{{.objetivo}}\", genera recomendaciones personalizadas de inversión. " +
			"Indica qué tickers del IBEX35 resultan interesantes, justificando cada recomendación con los datos reales proporcionados.",
		ExpectedOutput: "Lista de recomendaciones de inversión personalizadas con tickers y justificaciones basadas en datos reales.",
	},
	TaskRiskAssessment: {
		Agent: AgentRiskAnalyst,
		Instructions: "Estas son las volatilidades anualizadas del último año de los tickers del IBEX35:\n\n" +
			"{{.volatilidad}}\n\n" +
			"Integra esta métrica en un análisis que evalúe el riesgo asociado a cada activo, y proporciona recomendaciones " +
			"en función de la tolerancia al riesgo \"{{.perfil}}\".",
		ExpectedOutput: "Informe de análisis de riesgo con métricas como volatilidad anualizada y recomendaciones según el riesgo.",
	},
	TaskVisualization: {
		Agent: AgentDataVisualizer,
		Instructions: "Describe los gráficos que mostrarían la evolución histórica de precios (último año) para las acciones del IBEX35, " +
			"destacando tendencias importantes y eventos significativos.",
		ExpectedOutput: "Colección de descripciones de gráficos de evolución histórica para cada acción.",
	},
	TaskReportGeneration: {
		Agent: AgentReportEditor,
		Instructions: "Revisa el contenido generado por el Analista de Mercado, el Asesor de Inversiones y, si existe, el Analista de Riesgos. " +
			"Edita y organiza la información para producir un informe final en formato markdown, claro y profesional, " +
			"sin mensajes extra o de confirmación.",
		ExpectedOutput: "Informe final de inversiones en formato markdown, bien estructurado y sin mensajes adicionales.",
	},
	TaskChatQuery: {
		Agent: AgentStockChatbot,
		Instructions: "Contexto:\n{{.contexto}}\n\n" +
			"Pregunta: {{.pregunta}}\n\n" +
			"Responde **siempre en español**, basándote en el contexto proporcionado debes guiar al usuario con lo que te pregunte " +
			"y siempre ser asertivo, nunca decirle que no puedes hacer algo o que consulte otras fuentes.",
		ExpectedOutput: "Respuesta en español basada en el contexto.",
	},
}
