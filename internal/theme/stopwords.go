package theme

import "github.com/postcadence/planner/internal/textnorm"

// stopwords are function words and platform jargon that never make a theme.
// Words shorter than MinTokenRunes are dropped anyway and are not listed.
var stopwords = foldedSet(
	// Portuguese
	"para", "como", "mais", "menos", "muito", "muita", "muitos", "muitas",
	"esse", "essa", "esses", "essas", "isso", "este", "esta", "estes", "isto",
	"aquele", "aquela", "aquilo", "aqui", "quando", "onde", "porque", "pois",
	"então", "também", "sobre", "depois", "antes", "ainda", "agora", "sempre",
	"nunca", "todo", "toda", "todos", "todas", "cada", "mesmo", "mesma",
	"minha", "minhas", "meus", "nossa", "nosso", "nossos", "seus", "suas",
	"dele", "dela", "deles", "delas", "eles", "elas", "você", "vocês",
	"está", "estão", "estou", "estava", "estar", "foram", "seja", "sejam",
	"pelo", "pela", "pelos", "pelas", "numa", "entre", "tudo", "nada", "algo",
	"alguém", "fazer", "feito", "temos", "tenho", "tinha", "vamos", "pode",
	"podem", "posso", "quer", "quero", "queria", "sabe", "olha", "tipo",
	"assim", "desse", "dessa", "disso", "nesse", "nessa", "nisso", "qual",
	"quais", "quem", "será", "outro", "outra", "outros", "outras", "vezes",
	"porém", "contra", "desde", "até", "sem", "após", "cada", "fica", "ficar",
	"deu", "veja", "vejam", "confira", "aproveite", "aproveita",
	// English
	"this", "that", "with", "from", "your", "have", "just", "what", "when",
	"about", "they", "them", "there", "their", "will", "would", "been", "were",
	"into", "more", "some", "only", "over", "also", "like", "here", "than",
	// platform jargon
	"link", "bio", "post", "posts", "reel", "reels", "story", "stories",
	"instagram", "insta", "feed", "seguir", "sigam", "siga", "segue",
	"comenta", "comente", "comentários", "compartilha", "compartilhe",
	"salva", "salve", "curta", "curte", "marca", "marque", "arrasta", "clica",
	"clique", "perfil", "publi", "publicidade", "parceria", "tiktok",
	"youtube", "vídeo", "video", "canal", "live", "lives", "conteúdo",
	"followers", "follow", "like", "likes", "share",
)

// weakWords are real topics but too generic to steer a post.
var weakWords = foldedSet(
	"dica", "dicas", "coisa", "coisas", "hoje", "vida", "gente", "pessoa",
	"pessoas", "tempo", "mundo", "forma", "jeito", "parte", "melhor", "novo",
	"nova", "novidade", "semana", "momento", "amor", "obrigado", "obrigada",
	"incrível", "lindo", "linda", "demais", "sucesso", "sorteio", "galera",
	"especial", "importante", "rotina", "things", "today", "life", "best",
)

func foldedSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[textnorm.Fold(w)] = true
	}
	return set
}
