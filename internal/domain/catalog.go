package domain

// Product is a menu item sold in whole units of Unit (for example "dozen").
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Price       float64  `json:"price" yaml:"price"`
	Unit        string   `json:"unit" yaml:"unit"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Ingredients []string `json:"ingredients,omitempty" yaml:"ingredients"`
	Available   bool     `json:"available" yaml:"available"`
}

// KnowledgeEntry is one question/answer pair of the FAQ knowledge base.
type KnowledgeEntry struct {
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Menu is a snapshot of everything the shop publishes: products, the alias
// table mapping free-text phrases to product names, and the FAQ.
type Menu struct {
	Products  []Product         `json:"products" yaml:"products"`
	Aliases   map[string]string `json:"aliases,omitempty" yaml:"aliases"`
	Knowledge []KnowledgeEntry  `json:"faq,omitempty" yaml:"faq"`
}
