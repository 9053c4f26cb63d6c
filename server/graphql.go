package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/handler"
	"github.com/pkg/errors"

	"github.com/pressline/go-content-server/articles"
	"github.com/pressline/go-content-server/campaigns"
	"github.com/pressline/go-content-server/internal/utils"
	"github.com/pressline/go-content-server/users"
)

// jsonScalar carries free-form documents (campaign metadata) through the
// schema without forcing a fixed shape on them.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize:   func(value any) any { return value },
	ParseValue:  func(value any) any { return value },
	ParseLiteral: func(valueAST ast.Value) any {
		return parseLiteral(valueAST)
	},
})

func parseLiteral(valueAST ast.Value) any {
	switch value := valueAST.(type) {
	case *ast.StringValue, *ast.EnumValue:
		return value.GetValue()
	case *ast.BooleanValue:
		return value.Value
	case *ast.IntValue:
		if n, err := strconv.Atoi(value.Value); err == nil {
			return n
		}
		return value.Value
	case *ast.FloatValue:
		if fl, err := strconv.ParseFloat(value.Value, 64); err == nil {
			return fl
		}
		return value.Value
	case *ast.ListValue:
		list := make([]any, 0, len(value.Values))
		for _, v := range value.Values {
			list = append(list, parseLiteral(v))
		}
		return list
	case *ast.ObjectValue:
		obj := make(map[string]any, len(value.Fields))
		for _, field := range value.Fields {
			obj[field.Name.Value] = parseLiteral(field.Value)
		}
		return obj
	default:
		return nil
	}
}

func articleType(now func() time.Time) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Article",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"slug":           &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"title":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"content":        &graphql.Field{Type: graphql.String},
			"contentRewrite": &graphql.Field{Type: graphql.String},
			"categories":     &graphql.Field{Type: graphql.NewList(graphql.String)},
			"labels":         &graphql.Field{Type: graphql.NewList(graphql.String)},
			"isReviewed":     &graphql.Field{Type: graphql.Boolean},
			"publishedAt":    &graphql.Field{Type: graphql.DateTime},
			"createdBy":      &graphql.Field{Type: graphql.String},
			"updatedBy":      &graphql.Field{Type: graphql.String},
			"editedBy":       &graphql.Field{Type: graphql.String},
			"publishedBy":    &graphql.Field{Type: graphql.String},
			"deletedBy":      &graphql.Field{Type: graphql.String},
			"createdAt":      &graphql.Field{Type: graphql.DateTime},
			"updatedAt":      &graphql.Field{Type: graphql.DateTime},
			"deletedAt":      &graphql.Field{Type: graphql.DateTime},
			"isPublished": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					article, ok := p.Source.(*articles.Article)
					if !ok {
						return nil, errors.New("unexpected source type")
					}
					return article.IsPublished(now()), nil
				},
			},
		},
	})
}

func campaignType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Campaign",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"title":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"status":    &graphql.Field{Type: graphql.String},
			"metadata":  &graphql.Field{Type: jsonScalar},
			"createdAt": &graphql.Field{Type: graphql.DateTime},
			"updatedAt": &graphql.Field{Type: graphql.DateTime},
		},
	})
}

// graphqlHandler builds the schema and wraps it in the standard HTTP handler.
// Resolvers pull the acting user from the request context placed there by
// RequireToken.
func (s *Server) graphqlHandler() (http.Handler, error) {
	article := articleType(s.nowFunc)
	campaign := campaignType()

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"article": &graphql.Field{
				Type: article,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.String},
					"slug": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: s.resolveArticle,
			},
			"articles": &graphql.Field{
				Type: graphql.NewList(article),
				Args: graphql.FieldConfigArgument{
					"category":   &graphql.ArgumentConfig{Type: graphql.String},
					"label":      &graphql.ArgumentConfig{Type: graphql.String},
					"search":     &graphql.ArgumentConfig{Type: graphql.String},
					"isReviewed": &graphql.ArgumentConfig{Type: graphql.Boolean},
					"status":     &graphql.ArgumentConfig{Type: graphql.String},
					"first":      &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: s.resolveArticles,
			},
			"campaign": &graphql.Field{
				Type: campaign,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.resolveCampaign,
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createArticle": &graphql.Field{
				Type: article,
				Args: graphql.FieldConfigArgument{
					"title":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"slug":           &graphql.ArgumentConfig{Type: graphql.String},
					"content":        &graphql.ArgumentConfig{Type: graphql.String},
					"contentRewrite": &graphql.ArgumentConfig{Type: graphql.String},
					"categories":     &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"labels":         &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"isReviewed":     &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: s.resolveCreateArticle,
			},
			"updateArticle": &graphql.Field{
				Type: article,
				Args: graphql.FieldConfigArgument{
					"id":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"title":          &graphql.ArgumentConfig{Type: graphql.String},
					"content":        &graphql.ArgumentConfig{Type: graphql.String},
					"contentRewrite": &graphql.ArgumentConfig{Type: graphql.String},
					"categories":     &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
					"labels":         &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: s.resolveUpdateArticle,
			},
			"publishArticle":   s.articleActionField(article, func(id string, actor *users.User) (*articles.Article, error) { return s.articles.Publish(id, actor) }),
			"unpublishArticle": s.articleActionField(article, func(id string, actor *users.User) (*articles.Article, error) { return s.articles.Unpublish(id, actor) }),
			"restoreArticle":   s.articleActionField(article, func(id string, actor *users.User) (*articles.Article, error) { return s.articles.Restore(id, actor) }),
			"reviewArticle": &graphql.Field{
				Type: article,
				Args: graphql.FieldConfigArgument{
					"id":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"approved": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: s.resolveReviewArticle,
			},
			"deleteArticle": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.resolveDeleteArticle,
			},
			"maintainCampaign": &graphql.Field{
				Type: campaign,
				Args: graphql.FieldConfigArgument{
					"id":       &graphql.ArgumentConfig{Type: graphql.String},
					"title":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"status":   &graphql.ArgumentConfig{Type: graphql.String},
					"metadata": &graphql.ArgumentConfig{Type: jsonScalar},
				},
				Resolve: s.resolveMaintainCampaign,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "graphql.NewSchema")
	}

	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   s.config.IsDev(),
		GraphiQL: s.config.IsDev(),
	}), nil
}

func (s *Server) resolveArticle(p graphql.ResolveParams) (any, error) {
	id, _ := p.Args["id"].(string)
	slug, _ := p.Args["slug"].(string)

	switch {
	case id != "" && slug == "":
		return s.articles.FindByID(id)
	case slug != "" && id == "":
		return s.articles.FindBySlug(slug)
	default:
		return nil, errors.New("exactly one of id or slug is required")
	}
}

func (s *Server) resolveArticles(p graphql.ResolveParams) (any, error) {
	filters := articles.SearchFilters{}
	if v, ok := p.Args["category"].(string); ok {
		filters.Category = v
	}
	if v, ok := p.Args["label"].(string); ok {
		filters.Label = v
	}
	if v, ok := p.Args["search"].(string); ok {
		filters.Search = v
	}
	if v, ok := p.Args["isReviewed"].(bool); ok {
		filters.IsReviewed = utils.Ptr(v)
	}
	if v, ok := p.Args["status"].(string); ok {
		filters.Status = v
	}
	first, _ := p.Args["first"].(int)

	return s.articles.Search(filters, first)
}

func (s *Server) resolveCampaign(p graphql.ResolveParams) (any, error) {
	return s.campaigns.Get(p.Args["id"].(string))
}

func (s *Server) resolveCreateArticle(p graphql.ResolveParams) (any, error) {
	actor, err := actorFrom(p.Context)
	if err != nil {
		return nil, err
	}

	input := articles.CreateInput{
		Title: p.Args["title"].(string),
	}
	if v, ok := p.Args["slug"].(string); ok {
		input.Slug = v
	}
	if v, ok := p.Args["content"].(string); ok {
		input.Content = v
	}
	if v, ok := p.Args["contentRewrite"].(string); ok {
		input.ContentRewrite = v
	}
	if v, ok := p.Args["categories"].([]any); ok {
		input.Categories = utils.ToStringSlice(v)
	}
	if v, ok := p.Args["labels"].([]any); ok {
		input.Labels = utils.ToStringSlice(v)
	}
	if v, ok := p.Args["isReviewed"].(bool); ok {
		input.IsReviewed = v
	}

	return s.articles.Create(input, actor)
}

func (s *Server) resolveUpdateArticle(p graphql.ResolveParams) (any, error) {
	actor, err := actorFrom(p.Context)
	if err != nil {
		return nil, err
	}

	input := articles.UpdateInput{}
	if v, ok := p.Args["title"].(string); ok {
		input.Title = utils.Ptr(v)
	}
	if v, ok := p.Args["content"].(string); ok {
		input.Content = utils.Ptr(v)
	}
	if v, ok := p.Args["contentRewrite"].(string); ok {
		input.ContentRewrite = utils.Ptr(v)
	}
	if v, ok := p.Args["categories"].([]any); ok {
		input.Categories = utils.ToStringSlice(v)
	}
	if v, ok := p.Args["labels"].([]any); ok {
		input.Labels = utils.ToStringSlice(v)
	}

	return s.articles.Update(p.Args["id"].(string), input, actor)
}

func (s *Server) resolveReviewArticle(p graphql.ResolveParams) (any, error) {
	actor, err := actorFrom(p.Context)
	if err != nil {
		return nil, err
	}
	return s.articles.Review(p.Args["id"].(string), actor, p.Args["approved"].(bool))
}

func (s *Server) resolveDeleteArticle(p graphql.ResolveParams) (any, error) {
	actor, err := actorFrom(p.Context)
	if err != nil {
		return nil, err
	}
	if err := s.articles.Delete(p.Args["id"].(string), actor); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) resolveMaintainCampaign(p graphql.ResolveParams) (any, error) {
	if _, err := actorFrom(p.Context); err != nil {
		return nil, err
	}

	input := campaigns.MaintainInput{
		Title: p.Args["title"].(string),
	}
	if v, ok := p.Args["status"].(string); ok {
		input.Status = v
	}
	if v, ok := p.Args["metadata"].(map[string]any); ok {
		input.Metadata = v
	}

	id, _ := p.Args["id"].(string)
	return s.campaigns.Maintain(input, id)
}

// articleActionField builds a mutation that takes an article id and applies
// one attributed state change.
func (s *Server) articleActionField(article *graphql.Object, action func(id string, actor *users.User) (*articles.Article, error)) *graphql.Field {
	return &graphql.Field{
		Type: article,
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			actor, err := actorFrom(p.Context)
			if err != nil {
				return nil, err
			}
			return action(p.Args["id"].(string), actor)
		},
	}
}

func actorFrom(ctx context.Context) (*users.User, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, errors.New("no authenticated user in request context")
	}
	return user, nil
}
