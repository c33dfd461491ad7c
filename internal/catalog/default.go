package catalog

// Default returns the vocabulary used by the creator tagging UI.
func Default() *Catalog {
	return New(map[Dimension][]Entry{
		Format: {
			{ID: "reel", Label: "Reel", Aliases: []string{"reels", "video curto"}},
			{ID: "photo", Label: "Foto", Aliases: []string{"imagem", "image", "post"}},
			{ID: "carousel", Label: "Carrossel", Aliases: []string{"carrosel", "sidecar"}},
			{ID: "long_video", Label: "Vídeo longo", Aliases: []string{"video", "igtv"}},
			{ID: "live", Label: "Live", Aliases: []string{"ao vivo"}},
		},
		Context: {
			{ID: "education", Label: "Educação"},
			{ID: "lifestyle", Label: "Estilo de vida"},
			{ID: "finance", Label: "Finanças", Aliases: []string{"dinheiro"}},
			{ID: "fitness", Label: "Fitness", Aliases: []string{"treino", "academia"}},
			{ID: "food", Label: "Gastronomia", Aliases: []string{"comida", "culinária"}},
			{ID: "travel", Label: "Viagem", Aliases: []string{"viagens", "turismo"}},
			{ID: "technology", Label: "Tecnologia", Aliases: []string{"tech"}},
			{ID: "beauty", Label: "Beleza", Aliases: []string{"maquiagem"}},
			{ID: "fashion", Label: "Moda"},
			{ID: "humor", Label: "Humor", Aliases: []string{"comédia"}},
			{ID: "parenting", Label: "Maternidade e paternidade", Aliases: []string{"maternidade", "paternidade"}},
			{ID: "career", Label: "Carreira", Aliases: []string{"trabalho"}},
		},
		Proposal: {
			{ID: "tips", Label: "Dicas", Aliases: []string{"dica"}},
			{ID: "comparison", Label: "Comparação", Aliases: []string{"versus", "vs"}},
			{ID: "tutorial", Label: "Tutorial", Aliases: []string{"passo a passo", "how to"}},
			{ID: "review", Label: "Avaliação", Aliases: []string{"resenha", "análise"}},
			{ID: "behind_the_scenes", Label: "Bastidores"},
			{ID: "announcement", Label: "Anúncio", Aliases: []string{"lançamento"}},
			{ID: "storytelling", Label: "Storytelling", Aliases: []string{"história", "relato"}},
			{ID: "question", Label: "Pergunta", Aliases: []string{"enquete"}},
			{ID: "news", Label: "Notícia", Aliases: []string{"novidade"}},
			{ID: "challenge", Label: "Desafio", Aliases: []string{"trend"}},
		},
		Tone: {
			{ID: "humorous", Label: "Engraçado", Aliases: []string{"divertido"}},
			{ID: "inspirational", Label: "Inspirador", Aliases: []string{"motivacional"}},
			{ID: "informative", Label: "Informativo", Aliases: []string{"educativo"}},
			{ID: "critical", Label: "Crítico", Aliases: []string{"opinativo"}},
			{ID: "emotional", Label: "Emocional", Aliases: []string{"sensível"}},
			{ID: "casual", Label: "Descontraído", Aliases: []string{"leve"}},
		},
		Reference: {
			{ID: "pop_culture", Label: "Cultura pop", Aliases: []string{"séries", "filmes"}},
			{ID: "memes", Label: "Memes", Aliases: []string{"meme"}},
			{ID: "current_events", Label: "Atualidades", Aliases: []string{"notícias"}},
			{ID: "music", Label: "Música"},
			{ID: "sports", Label: "Esportes", Aliases: []string{"futebol"}},
			{ID: "local_city", Label: "Cidade", Aliases: []string{"regional"}},
			{ID: "celebrities", Label: "Celebridades", Aliases: []string{"famosos"}},
		},
	})
}
