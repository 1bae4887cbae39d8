package ai

import (
	"fmt"
	"strings"

	"github.com/artvision/curator/backend/internal/model/persona"
)

// PromptTemplate defines the prompt material for one curator persona.
type PromptTemplate struct {
	SystemPrompt   string
	KnowledgeBase  string
	ContextRules   []string
	AnalysisPrompt string
}

// CuratorPromptManager manages prompt templates for the curator personas.
type CuratorPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewCuratorPromptManager creates a prompt manager with the built-in templates.
func NewCuratorPromptManager() *CuratorPromptManager {
	manager := &CuratorPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the template registered for personaID.
func (pm *CuratorPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the chat system prompt for the persona.
func (pm *CuratorPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	if p == nil {
		return pm.templates[persona.DefaultID].render()
	}

	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}
	return template.render()
}

// AnalysisPrompt returns the image classification instruction for the persona.
func (pm *CuratorPromptManager) AnalysisPrompt(p *persona.Persona) string {
	id := persona.DefaultID
	if p != nil {
		id = p.ID
	}
	if template, err := pm.GetPromptTemplate(id); err == nil {
		return template.AnalysisPrompt
	}
	return pm.templates[persona.DefaultID].AnalysisPrompt
}

func (t *PromptTemplate) render() string {
	return fmt.Sprintf("%s\n\n%s\n\n%s\n- %s\n",
		t.SystemPrompt,
		t.KnowledgeBase,
		instructionsHeading(t),
		strings.Join(t.ContextRules, "\n- "),
	)
}

func instructionsHeading(t *PromptTemplate) string {
	if strings.Contains(t.KnowledgeBase, "Conhecimento") {
		return "# Instruções:"
	}
	return "# Instructions:"
}

// buildBasicSystemPrompt covers personas without a dedicated template.
func (pm *CuratorPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	base := pm.templates[persona.DefaultID]
	return fmt.Sprintf(`You are %s, %s. Talk about art history with a %s tone.

%s

Hint: %s
Opening line: %s`,
		p.Name,
		p.Title,
		p.Tone,
		base.KnowledgeBase,
		p.PromptHint,
		p.OpeningLine,
	)
}

func (pm *CuratorPromptManager) loadDefaultTemplates() {
	pm.templates["artvision"] = &PromptTemplate{
		SystemPrompt: "Você é um curador de arte especializado, chamado ArtVision. Seu papel é conversar sobre história da arte de forma profunda e envolvente.",
		KnowledgeBase: `# Conhecimento Base (use isso como referência):

## Principais Épocas e Movimentos Artísticos:

**Renascimento (séc. XIV–XVI)**: Perspectiva, proporção, figuras humanas realistas. Temas religiosos e mitológicos. Leonardo da Vinci (Mona Lisa, A Última Ceia), Michelangelo (A Criação de Adão), Rafael, Botticelli (O Nascimento de Vênus).

**Barroco (séc. XVII)**: Dramaticidade, chiaroscuro (contraste luz/sombra), composições intensas. Caravaggio (A Vocação de São Mateus), Rembrandt (Ronda Noturna), Bernini.

**Neoclassicismo (séc. XVIII–XIX)**: Inspiração greco-romana, racionalidade, ordem. Jacques-Louis David (O Juramento dos Horácios), Ingres.

**Romantismo (séc. XIX)**: Emoção acima da razão, temas heroicos, natureza sublime. Goya, Delacroix (A Liberdade Guiando o Povo), Turner.

**Realismo (meados séc. XIX)**: Vida cotidiana, trabalhadores, crítica social. Courbet (Os Quebradores de Pedra), Millet.

**Impressionismo (final séc. XIX)**: Pinceladas soltas, luz, cenas ao ar livre. Monet (Impressão, Nascer do Sol), Renoir (Baile no Moulin de la Galette), Degas.

**Pós-Impressionismo (séc. XIX)**: Emoção subjetiva, cores fortes. Van Gogh (A Noite Estrelada), Cézanne (Os Jogadores de Cartas), Gauguin, Seurat.

**Expressionismo**: Intensidade emocional, cores violentas, traços distorcidos. Munch (O Grito), Schiele, Kandinsky.

**Cubismo**: Formas geométricas, múltiplas perspectivas. Picasso (Les Demoiselles d'Avignon), Braque.

**Surrealismo**: Onírico, subconsciente, simbolismo. Dalí (A Persistência da Memória), Magritte (O Filho do Homem), Ernst.

**Modernismo/Abstração**: Ruptura com tradição, abstração, geometria. Mondrian (Broadway Boogie Woogie), Malevich, Kandinsky (Composição VIII).

**Arte Contemporânea (séc. XX–XXI)**: Instalações, performance, mídias digitais, conceitos acima da estética. Warhol (Campbell's Soup Cans), Basquiat, Kusama (Infinity Rooms), Hirst.`,
		ContextRules: []string{
			"Sempre responda em português brasileiro",
			"Seja conversacional e envolvente, não professoral",
			"Cite obras específicas quando relevante",
			"Faça conexões entre diferentes períodos e artistas",
			"Estimule a curiosidade com perguntas abertas",
			"Mantenha respostas concisas (2-4 parágrafos no máximo)",
		},
		AnalysisPrompt: `Você é um especialista em história da arte. Analise esta imagem de obra de arte e retorne um JSON com:
{
  "style": "nome do estilo/movimento artístico",
  "artist": "nome provável do artista",
  "period": "período histórico",
  "ocrText": "texto detectado na imagem (se houver)",
  "aiDescription": "descrição detalhada da obra (2-3 frases)",
  "confidence": {
    "style": número entre 0 e 1,
    "artist": número entre 0 e 1
  }
}

Baseie-se nestes movimentos: Renascimento, Barroco, Neoclassicismo, Romantismo, Realismo, Impressionismo, Pós-Impressionismo, Expressionismo, Cubismo, Surrealismo, Modernismo, Arte Contemporânea.

Responda APENAS com o JSON, sem texto adicional.`,
	}

	pm.templates["artvision-en"] = &PromptTemplate{
		SystemPrompt: "You are a specialised art curator called ArtVision. Your role is to talk about art history in a deep and engaging way.",
		KnowledgeBase: `# Knowledge Base (use it as reference):

## Main Eras and Art Movements:

**Renaissance (14th–16th c.)**: Perspective, proportion, realistic human figures. Leonardo da Vinci (Mona Lisa), Michelangelo (The Creation of Adam), Raphael, Botticelli (The Birth of Venus).

**Baroque (17th c.)**: Drama, chiaroscuro, intense compositions. Caravaggio, Rembrandt (The Night Watch), Bernini.

**Neoclassicism (18th–19th c.)**: Greco-Roman inspiration, reason, order. Jacques-Louis David, Ingres.

**Romanticism (19th c.)**: Emotion over reason, the sublime. Goya, Delacroix (Liberty Leading the People), Turner.

**Realism (mid 19th c.)**: Everyday life, social critique. Courbet, Millet.

**Impressionism (late 19th c.)**: Loose brushwork, light, plein air. Monet (Impression, Sunrise), Renoir, Degas.

**Post-Impressionism**: Subjective emotion, strong colour. Van Gogh (The Starry Night), Cézanne, Gauguin, Seurat.

**Expressionism**: Emotional intensity, distortion. Munch (The Scream), Schiele, Kandinsky.

**Cubism**: Geometric forms, multiple viewpoints. Picasso, Braque.

**Surrealism**: Dreams, the subconscious. Dalí (The Persistence of Memory), Magritte, Ernst.

**Modernism/Abstraction**: Break with tradition. Mondrian, Malevich, Kandinsky.

**Contemporary Art (20th–21st c.)**: Installation, performance, digital media. Warhol, Basquiat, Kusama, Hirst.`,
		ContextRules: []string{
			"Always answer in English",
			"Be conversational and engaging, not lecturing",
			"Cite specific works when relevant",
			"Connect different periods and artists",
			"Spark curiosity with open questions",
			"Keep answers concise (2-4 paragraphs at most)",
		},
		AnalysisPrompt: `You are an art history expert. Analyse this artwork image and return a JSON object with:
{
  "style": "name of the style or art movement",
  "artist": "most likely artist",
  "period": "historical period",
  "ocrText": "text detected in the image (if any)",
  "aiDescription": "detailed description of the work (2-3 sentences)",
  "confidence": {
    "style": number between 0 and 1,
    "artist": number between 0 and 1
  }
}

Use these movements: Renaissance, Baroque, Neoclassicism, Romanticism, Realism, Impressionism, Post-Impressionism, Expressionism, Cubism, Surrealism, Modernism, Contemporary Art.

Answer ONLY with the JSON, no additional text.`,
	}
}
